package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pageza/alchemorsel-v2/search/internal/embedding"
)

// IndexStats summarizes one indexing run.
type IndexStats struct {
	Embedded int
	Skipped  int
	Failed   int
	Errors   []string
	Duration time.Duration
}

// EmbeddingIndexer computes recipe embeddings. A recipe is embedded when it
// has no embedding yet or its content changed since the last run.
type EmbeddingIndexer struct {
	recipes  *RecipeService
	embedder embedding.Embedder
	workers  int
}

// NewEmbeddingIndexer creates an indexer with the given concurrency.
func NewEmbeddingIndexer(recipes *RecipeService, embedder embedding.Embedder, workers int) *EmbeddingIndexer {
	if workers < 1 {
		workers = 1
	}
	return &EmbeddingIndexer{recipes: recipes, embedder: embedder, workers: workers}
}

// Run embeds every recipe whose content hash differs from the stored one.
// With force set, every recipe is embedded again. A failure on one recipe is
// recorded in the stats and does not stop the run.
func (idx *EmbeddingIndexer) Run(ctx context.Context, force bool) (*IndexStats, error) {
	start := time.Now()

	recipes, err := idx.recipes.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	hashes, err := idx.recipes.EmbeddingHashes(ctx)
	if err != nil {
		return nil, err
	}

	var (
		embedded int32
		skipped  int32
		failed   int32
		mu       sync.Mutex
		stats    IndexStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i := range recipes {
		recipe := &recipes[i]
		text := recipe.EmbeddingText()
		hash := embedding.ContentHash(text)
		if !force && hashes[recipe.ID] == hash {
			atomic.AddInt32(&skipped, 1)
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := idx.embedder.Embed(gctx, text)
			if err == nil {
				err = idx.recipes.UpsertEmbedding(gctx, recipe.ID, vec, hash)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s (%s): %v", recipe.ID, recipe.Name, err))
				mu.Unlock()
				return nil
			}
			atomic.AddInt32(&embedded, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Embedded = int(embedded)
	stats.Skipped = int(skipped)
	stats.Failed = int(failed)
	stats.Duration = time.Since(start)
	log.Printf("Indexed recipe embeddings: %d embedded, %d unchanged, %d failed in %s",
		stats.Embedded, stats.Skipped, stats.Failed, stats.Duration)
	return &stats, nil
}
