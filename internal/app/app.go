// Package app wires the search engine and its dependencies from
// configuration. It is shared by the API server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/database"
	"github.com/pageza/alchemorsel-v2/search/internal/embedding"
	"github.com/pageza/alchemorsel-v2/search/internal/search"
	"github.com/pageza/alchemorsel-v2/search/internal/service"
)

// Deps holds the connections the service runs on.
type Deps struct {
	SQL   *database.DB
	DB    *gorm.DB
	Redis *redis.Client // nil when Redis is unavailable
}

// Connect opens the database and, if possible, Redis. Without Redis the
// embedding cache uses the database and searches are not rate limited.
func Connect(cfg *config.Config) (*Deps, error) {
	sqlDB, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sqlDB.Gorm()
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	deps := &Deps{SQL: sqlDB, DB: db}
	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		log.Printf("Warning: Redis unavailable, continuing without it: %v", err)
	} else {
		deps.Redis = redisClient
	}
	return deps, nil
}

// Close releases every connection.
func (d *Deps) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.SQL != nil {
		d.SQL.Close()
	}
}

// Services is the wired search stack.
type Services struct {
	Recipes  *service.RecipeService
	Embedder embedding.Embedder
	Cache    embedding.Store
	Engine   *search.Engine
}

// NewServices builds the recipe repository, the cached query embedder and
// the search engine.
func NewServices(ctx context.Context, cfg *config.Config, deps *Deps) (*Services, error) {
	recipes := service.NewRecipeService(deps.DB, cfg.MigrationsDir)

	embedder, err := embedding.New(cfg)
	if err != nil {
		return nil, err
	}
	store := CacheStore(cfg, deps)

	opts := []search.Option{
		search.WithEmbedder(embedding.NewCachedEmbedder(store, embedder)),
		search.WithLogger(slog.Default()),
	}
	if cfg.ImageBucket != "" {
		s3cfg, err := config.NewS3Config(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure image bucket: %w", err)
		}
		opts = append(opts, search.WithImageResolver(s3cfg))
	}

	return &Services{
		Recipes:  recipes,
		Embedder: embedder,
		Cache:    store,
		Engine:   search.NewEngine(recipes, cfg.Search, opts...),
	}, nil
}

// CacheStore selects the query embedding store. Redis is used when it is
// configured and reachable; the database table otherwise.
func CacheStore(cfg *config.Config, deps *Deps) embedding.Store {
	if cfg.EmbeddingCacheBackend != "redis" {
		return embedding.NewGormStore(deps.DB)
	}
	if deps.Redis == nil {
		log.Printf("Warning: Redis embedding cache requested but Redis is unavailable, using the database")
		return embedding.NewGormStore(deps.DB)
	}
	return embedding.NewRedisStore(deps.Redis, embedding.FreshnessWindow)
}
