package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

// Dimension is the vector size every embedder produces.
const Dimension = models.EmbeddingDimension

// ErrEmptyText is returned when there is nothing to embed.
var ErrEmptyText = errors.New("embedding: empty text")

// Embedder computes the embedding of a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New returns the embedder selected by cfg.EmbeddingProvider.
func New(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		return NewOpenAIEmbedder(cfg.EmbeddingAPIKey, cfg.EmbeddingAPIURL, cfg.EmbeddingModel), nil
	case "local", "":
		return NewLocalEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// NormalizeText is the cache key form of a text: lowercased, trimmed, with
// internal whitespace collapsed.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// ContentHash returns the hex sha256 of text, used to detect when a recipe
// embedding is out of date.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
