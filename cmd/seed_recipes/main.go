package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/database"
	"github.com/pageza/alchemorsel-v2/search/internal/embedding"
	"github.com/pageza/alchemorsel-v2/search/internal/models"
	"github.com/pageza/alchemorsel-v2/search/internal/service"
)

func main() {
	file := flag.String("file", "seeds/recipes.json", "recipe seed file")
	force := flag.Bool("force", false, "re-embed every recipe")
	workers := flag.Int("workers", 4, "concurrent embedding requests")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	recipes, err := loadRecipes(*file)
	if err != nil {
		log.Fatalf("Failed to load seed recipes: %v", err)
	}

	sqlDB, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer sqlDB.Close()
	db, err := sqlDB.Gorm()
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	embedder, err := embedding.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := service.NewRecipeService(db, cfg.MigrationsDir)
	if err := svc.UpsertRecipes(ctx, recipes); err != nil {
		log.Fatalf("Failed to save recipes: %v", err)
	}
	log.Printf("Saved %d recipes from %s", len(recipes), *file)

	stats, err := service.NewEmbeddingIndexer(svc, embedder, *workers).Run(ctx, *force)
	if err != nil {
		log.Fatalf("Failed to embed recipes: %v", err)
	}
	for _, e := range stats.Errors {
		log.Printf("Embedding failed: %s", e)
	}
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// loadRecipes reads a JSON array of recipes. Every recipe needs an id so
// that seeding again updates rows instead of duplicating them.
func loadRecipes(path string) ([]models.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var recipes []models.Recipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for i, r := range recipes {
		if r.ID == uuid.Nil {
			return nil, fmt.Errorf("recipe %d (%s) has no id", i, r.Name)
		}
		if r.Name == "" {
			return nil, fmt.Errorf("recipe %s has no name", r.ID)
		}
	}
	return recipes, nil
}
