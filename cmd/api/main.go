package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/andresdiniz/wazeBR-sub001/internal/api/handlers"
	"github.com/andresdiniz/wazeBR-sub001/internal/api/middleware"
	"github.com/andresdiniz/wazeBR-sub001/internal/api/services"
	"github.com/andresdiniz/wazeBR-sub001/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql db handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, running without cache: %v", err)
	}
	defer cache.Close()

	authService := services.NewAuthService(cfg.JWT)

	authHandler := handlers.NewAuthHandler(db, authService)
	irregularitiesHandler := handlers.NewIrregularitiesHandler(db, cache)
	routesHandler := handlers.NewRoutesHandler(db, cache)
	cooldownHandler := handlers.NewCooldownHandler(db)

	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "UP",
			"message": "wazeBR API is running",
		})
	})

	auth := router.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.RequireAuth(authService))
	{
		api.GET("/irregularities", irregularitiesHandler.GetIrregularities)
		api.GET("/routes", routesHandler.GetRoutes)
		api.GET("/cooldowns", cooldownHandler.GetCooldowns)
		api.PATCH("/me/subscription", authHandler.UpdateSubscription)
	}

	router.GET("/ws/live", handlers.AlertsWebSocket(cache, authService))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
