package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultAllowedOrigins are the local frontend origins.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://frontend:5173"}

// CORS middleware to handle cross-origin requests
func CORS(origins ...string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Accept", "Origin", "Cache-Control", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Filtered-Count", "X-Total-Count", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	})
}
