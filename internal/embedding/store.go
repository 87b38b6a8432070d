package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pgvector "github.com/pgvector/pgvector-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

// ErrCacheMiss is returned by a Store that holds no entry for a text.
var ErrCacheMiss = errors.New("embedding: cache miss")

// Entry is one cached query embedding.
type Entry struct {
	Text      string    `json:"text"`
	Vector    []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists query embeddings. Put must be an atomic upsert: concurrent
// writers of the same text never fail and the last write wins.
type Store interface {
	Get(ctx context.Context, text string) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
}

// GormStore keeps entries in the query_embedding_cache table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the entry for text or ErrCacheMiss.
func (s *GormStore) Get(ctx context.Context, text string) (*Entry, error) {
	var row models.QueryEmbedding
	err := s.db.WithContext(ctx).Where("query_text = ?", text).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read query embedding: %w", err)
	}
	return &Entry{Text: row.QueryText, Vector: row.Embedding.Slice(), CreatedAt: row.CreatedAt}, nil
}

// Put upserts the entry keyed by its text.
func (s *GormStore) Put(ctx context.Context, entry Entry) error {
	row := models.QueryEmbedding{
		QueryText: entry.Text,
		Embedding: pgvector.NewVector(entry.Vector),
		CreatedAt: entry.CreatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "query_text"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "created_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store query embedding: %w", err)
	}
	return nil
}

// Prune deletes entries created before the cutoff and returns how many were
// removed.
func (s *GormStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.QueryEmbedding{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune query embeddings: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RedisStore keeps entries in Redis under a hash of the text. Keys expire
// after TTL, but freshness is still decided by the cache at read time.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl keeps keys forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "search:query_embedding:", ttl: ttl}
}

func (s *RedisStore) key(text string) string {
	return s.prefix + ContentHash(text)
}

// Get returns the entry for text or ErrCacheMiss.
func (s *RedisStore) Get(ctx context.Context, text string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.key(text)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read query embedding: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode query embedding: %w", err)
	}
	if entry.Text != text {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

// Put overwrites the entry for its text.
func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode query embedding: %w", err)
	}
	if err := s.client.Set(ctx, s.key(entry.Text), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store query embedding: %w", err)
	}
	return nil
}
