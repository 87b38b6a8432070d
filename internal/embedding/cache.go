package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// FreshnessWindow is how long a cached query embedding is used before it is
// recomputed.
const FreshnessWindow = 24 * time.Hour

// ComputeTimeout bounds one shared embedding computation. It runs detached
// from the callers' contexts, so a caller that gives up does not fail the
// others waiting on the same text.
const ComputeTimeout = 30 * time.Second

// CachedEmbedder serves query embeddings from a Store and computes them
// through an Embedder on a miss. The store only affects latency: a failed
// read counts as a miss and a failed write is logged.
type CachedEmbedder struct {
	store    Store
	embedder Embedder
	window   time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
	group    singleflight.Group
}

// CacheOption configures a CachedEmbedder.
type CacheOption func(*CachedEmbedder)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedEmbedder) { c.now = now }
}

// WithComputeTimeout replaces ComputeTimeout.
func WithComputeTimeout(d time.Duration) CacheOption {
	return func(c *CachedEmbedder) { c.timeout = d }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *CachedEmbedder) { c.logger = l }
}

// NewCachedEmbedder creates a cache with the 24 hour freshness window.
func NewCachedEmbedder(store Store, embedder Embedder, opts ...CacheOption) *CachedEmbedder {
	c := &CachedEmbedder{
		store:    store,
		embedder: embedder,
		window:   FreshnessWindow,
		timeout:  ComputeTimeout,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the embedding of text. A fresh cached entry is
// returned as is; otherwise the embedding is computed and upserted.
// Concurrent calls for the same text share one computation, and each caller
// stops waiting when its own context is done.
func (c *CachedEmbedder) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	key := NormalizeText(text)
	if key == "" {
		return nil, ErrEmptyText
	}

	entry, err := c.store.Get(ctx, key)
	switch {
	case err == nil && c.fresh(entry):
		return entry.Vector, nil
	case err != nil && !errors.Is(err, ErrCacheMiss):
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnContext(ctx, "query embedding cache read failed", "error", err)
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		vec, err := c.embedder.Embed(cctx, key)
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(cctx, Entry{Text: key, Vector: vec, CreatedAt: c.now()}); err != nil {
			c.logger.WarnContext(cctx, "query embedding cache write failed", "error", err)
		}
		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

// fresh reports whether the entry is younger than the window.
func (c *CachedEmbedder) fresh(e *Entry) bool {
	return e != nil && len(e.Vector) > 0 && c.now().Sub(e.CreatedAt) < c.window
}
