package models

import (
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
)

// EmbeddingDimension is the vector size produced by the embedding model.
const EmbeddingDimension = 1536

// RecipeEmbedding holds the single embedding of a recipe.
type RecipeEmbedding struct {
	RecipeID    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"recipe_id"`
	Embedding   pgvector.Vector `gorm:"type:vector(1536);not null" json:"-"`
	ContentHash string          `gorm:"size:64;not null" json:"content_hash"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName returns the table name for the RecipeEmbedding model
func (RecipeEmbedding) TableName() string {
	return "recipe_embeddings"
}

// QueryEmbedding is a cached embedding of a normalized search query.
type QueryEmbedding struct {
	QueryText string          `gorm:"type:text;primaryKey" json:"query_text"`
	Embedding pgvector.Vector `gorm:"type:vector(1536);not null" json:"-"`
	CreatedAt time.Time       `gorm:"not null;index" json:"created_at"`
}

// TableName returns the table name for the QueryEmbedding model
func (QueryEmbedding) TableName() string {
	return "query_embedding_cache"
}
