package router

import (
	"github.com/gin-gonic/gin"

	"github.com/pageza/alchemorsel-v2/search/internal/api"
	"github.com/pageza/alchemorsel-v2/search/internal/middleware"
)

// SetupRouter configures the application routes. limiter may be nil, in
// which case searches are not rate limited.
func SetupRouter(
	searchHandler *api.SearchHandler,
	healthHandler *api.HealthHandler,
	limiter *middleware.RateLimiter,
) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Tracing(), middleware.Recovery(), middleware.ErrorHandler())

	// CORS middleware
	router.Use(middleware.CORS())

	// Health check endpoint
	router.GET("/health", healthHandler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	if limiter != nil {
		v1.Use(limiter.Middleware())
	}
	searchHandler.RegisterRoutes(v1)

	return router
}
