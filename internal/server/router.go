package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mvasquez-dev/photoloom-backend/internal/handlers"
)

type RouterConfig struct {
	CallbacksHandler    *handlers.CallbacksHandler
	IntelligenceHandler *handlers.IntelligenceHandler
	AllowOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	if len(cfg.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With"},
		}))
	}

	router.GET("/healthcheck", handlers.HealthCheck)

	// Compute backend push surface.
	internal := router.Group("/internal")
	{
		internal.POST("/intelligence/callbacks", cfg.CallbacksHandler.HandleCompletion)
	}

	// Read contracts for the API layer.
	api := router.Group("/api")
	{
		api.GET("/entities/:id/intelligence", cfg.IntelligenceHandler.GetEntityIntelligence)
		api.POST("/similarity/search", cfg.IntelligenceHandler.SearchSimilar)
		api.GET("/persons/:id/faces", cfg.IntelligenceHandler.GetPersonFaces)
	}

	return router
}
