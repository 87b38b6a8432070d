package database

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pageza/alchemorsel-v2/search/config"
)

// NewRedisClient connects to Redis and pings it. Callers treat a failure as
// "no Redis": the embedding cache falls back to the database and the rate
// limiter is not installed.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	log.Printf("Connected to Redis at %s (db %d)", opts.Addr, opts.DB)
	return client, nil
}

// redisOptions builds client options. REDIS_URL replaces the discrete host,
// port, password and db settings. Timeouts are short since Redis only ever
// saves latency here.
func redisOptions(cfg *config.Config) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 500 * time.Millisecond
	opts.WriteTimeout = 500 * time.Millisecond
	return opts, nil
}
