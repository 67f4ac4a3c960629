package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/andresdiniz/wazeBR-sub001/internal/api/models"
)

type CooldownHandler struct {
	db *gorm.DB
}

func NewCooldownHandler(db *gorm.DB) *CooldownHandler {
	return &CooldownHandler{db: db}
}

// GetCooldowns lists the alert throttling ledger, most recently sent
// first. Operators use it to see why a known jam is quiet.
func (h *CooldownHandler) GetCooldowns(c *gin.Context) {
	p := ParsePagination(c)

	query := h.db.Model(&models.CooldownEntry{}).Order("last_sent DESC").Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("last_sent < ?", *p.Before)
	}

	var rows []models.CooldownEntry
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
		nextCursor = rows[len(rows)-1].LastSent.Format(time.RFC3339Nano)
	}

	c.JSON(http.StatusOK, CursorResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore})
}
