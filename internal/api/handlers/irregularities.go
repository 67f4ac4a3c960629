package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/andresdiniz/wazeBR-sub001/internal/api/models"
	"github.com/andresdiniz/wazeBR-sub001/internal/api/services"
)

type IrregularitiesHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewIrregularitiesHandler(db *gorm.DB, cache *services.CacheService) *IrregularitiesHandler {
	return &IrregularitiesHandler{db: db, cache: cache}
}

// GetIrregularities lists irregularities newest first with cursor
// pagination on date_updated.
func (h *IrregularitiesHandler) GetIrregularities(c *gin.Context) {
	p := ParsePagination(c)
	partnerID := c.Query("partner_id")

	beforeStr := ""
	if p.Before != nil {
		beforeStr = p.Before.Format(time.RFC3339Nano)
	}
	cacheKey := fmt.Sprintf("irregularities:%s:%d:%s", partnerID, p.Limit, beforeStr)

	var cached CursorResponse
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	query := h.db.Model(&models.Irregularity{}).Order("date_updated DESC").Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("date_updated < ?", *p.Before)
	}
	if partnerID != "" {
		query = query.Where("id_parceiro = ?", partnerID)
	}

	var rows []models.Irregularity
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}

	var nextCursor string
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].DateUpdated.Format(time.RFC3339Nano)
	}

	resp := CursorResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore}
	go h.cache.Set(context.Background(), cacheKey, resp, 5*time.Second)

	c.JSON(http.StatusOK, resp)
}
