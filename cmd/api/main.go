package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/api"
	"github.com/pageza/alchemorsel-v2/search/internal/app"
	"github.com/pageza/alchemorsel-v2/search/internal/middleware"
	"github.com/pageza/alchemorsel-v2/search/internal/router"
	"github.com/pageza/alchemorsel-v2/search/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database and Redis
	deps, err := app.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer deps.Close()

	// Initialize services
	svcs, err := app.NewServices(context.Background(), cfg, deps)
	if err != nil {
		log.Fatalf("Failed to initialize search: %v", err)
	}

	checks := map[string]api.Pinger{"database": deps.SQL}
	var limiter *middleware.RateLimiter
	if deps.Redis != nil {
		checks["redis"] = api.PingFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
		if cfg.SearchRateLimit > 0 {
			limiter = middleware.NewSearchRateLimiter(deps.Redis, cfg.SearchRateLimit)
		}
	}

	handler := router.SetupRouter(
		api.NewSearchHandler(svcs.Engine, cfg.RequestTimeout),
		api.NewHealthHandler(checks),
		limiter,
	)

	// Create and start server
	srv := server.New(cfg, handler)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
