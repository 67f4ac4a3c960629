package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/andresdiniz/wazeBR-sub001/internal/api/models"
	"github.com/andresdiniz/wazeBR-sub001/internal/api/services"
)

type RoutesHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewRoutesHandler(db *gorm.DB, cache *services.CacheService) *RoutesHandler {
	return &RoutesHandler{db: db, cache: cache}
}

func (h *RoutesHandler) GetRoutes(c *gin.Context) {
	const cacheKey = "routes:all"

	var cached struct {
		Data []models.Route `json:"data"`
	}
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	var routes []models.Route
	if err := h.db.Order("date_updated DESC").Find(&routes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	resp := gin.H{"data": routes}
	go h.cache.Set(context.Background(), cacheKey, resp, 60*time.Second)

	c.JSON(http.StatusOK, resp)
}
