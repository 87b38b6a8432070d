package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort     string
	ServerHost     string
	RequestTimeout time.Duration

	// Database configuration
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	MigrationsDir string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// Embedding configuration
	EmbeddingProvider     string // openai or local
	EmbeddingAPIKey       string
	EmbeddingAPIURL       string
	EmbeddingModel        string
	EmbeddingCacheBackend string // postgres or redis

	// Recipe images
	ImageBucket string
	AWSRegion   string

	// Rate limiting for the search endpoints, requests per minute per client
	SearchRateLimit int

	// Search holds the scoring weights and thresholds
	Search SearchConfig
}

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	// A .env file is optional and never overrides the real environment
	_ = godotenv.Load()

	env := GetEnvironment()
	cfg := &Config{}

	// Load configuration based on environment
	switch env {
	case CI:
		loadCIConfig(cfg)
	case Development, Test:
		loadDevConfig(cfg)
	case Production:
		loadProdConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}
	loadCommonConfig(cfg)

	search, err := LoadSearchConfig(os.Getenv("SEARCH_CONFIG_FILE"))
	if err != nil {
		return nil, fmt.Errorf("failed to load search configuration: %w", err)
	}
	cfg.Search = search

	// Validate the configuration
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadCIConfig loads configuration for CI environment from environment variables only
func loadCIConfig(cfg *Config) {
	cfg.ServerPort = os.Getenv("SERVER_PORT")
	cfg.ServerHost = os.Getenv("SERVER_HOST")
	cfg.DBHost = os.Getenv("DB_HOST")
	cfg.DBPort = os.Getenv("DB_PORT")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.DBSSLMode = os.Getenv("DB_SSL_MODE")
	cfg.RedisHost = os.Getenv("REDIS_HOST")
	cfg.RedisPort = os.Getenv("REDIS_PORT")

	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.EmbeddingAPIKey = os.Getenv("EMBEDDING_API_KEY")
	cfg.RedisDB = 0 // This is a constant, not a secret
}

// loadDevConfig loads configuration for development and test environments.
// Docker secrets win when present, environment variables fill the rest.
func loadDevConfig(cfg *Config) {
	cfg.ServerPort = secretOrEnv("server_port", "SERVER_PORT", "8080")
	cfg.ServerHost = secretOrEnv("server_host", "SERVER_HOST", "localhost")
	cfg.DBHost = secretOrEnv("db_host", "DB_HOST", "localhost")
	cfg.DBPort = secretOrEnv("db_port", "DB_PORT", "5432")
	cfg.DBUser = secretOrEnv("db_user", "DB_USER", "postgres")
	cfg.DBPassword = secretOrEnv("db_password", "DB_PASSWORD", "postgres")
	cfg.DBName = secretOrEnv("db_name", "DB_NAME", "recipes")
	cfg.DBSSLMode = secretOrEnv("db_ssl_mode", "DB_SSL_MODE", "disable")
	cfg.RedisHost = secretOrEnv("redis_host", "REDIS_HOST", "localhost")
	cfg.RedisPort = secretOrEnv("redis_port", "REDIS_PORT", "6379")
	cfg.RedisPassword = secretOrEnv("redis_password", "REDIS_PASSWORD", "")
	cfg.RedisURL = secretOrEnv("redis_url", "REDIS_URL", "")
	cfg.EmbeddingAPIKey = secretOrEnv("embedding_api_key", "EMBEDDING_API_KEY", "")
	cfg.RedisDB = 0 // This is a constant, not a secret
}

// loadProdConfig loads configuration for production environment using ONLY Docker secrets
func loadProdConfig(cfg *Config) {
	cfg.ServerPort = readSecret("server_port")
	cfg.ServerHost = readSecret("server_host")
	cfg.DBHost = readSecret("db_host")
	cfg.DBPort = readSecret("db_port")
	cfg.DBUser = readSecret("db_user")
	cfg.DBPassword = readSecret("db_password")
	cfg.DBName = readSecret("db_name")
	cfg.DBSSLMode = readSecret("db_ssl_mode")
	cfg.RedisHost = readSecret("redis_host")
	cfg.RedisPort = readSecret("redis_port")
	cfg.RedisPassword = readSecret("redis_password")
	cfg.RedisURL = readSecret("redis_url")
	cfg.EmbeddingAPIKey = readSecret("embedding_api_key")
	cfg.RedisDB = 0 // This is a constant, not a secret
}

// loadCommonConfig fills the non-secret settings shared by every environment
func loadCommonConfig(cfg *Config) {
	cfg.RequestTimeout = time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", "migrations")
	cfg.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", "local")
	cfg.EmbeddingAPIURL = getEnv("EMBEDDING_API_URL", "https://api.openai.com/v1/embeddings")
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", "text-embedding-3-small")
	cfg.EmbeddingCacheBackend = getEnv("EMBEDDING_CACHE_BACKEND", "postgres")
	cfg.ImageBucket = getEnv("S3_BUCKET_NAME", "")
	cfg.AWSRegion = getEnv("AWS_REGION", "")
	cfg.SearchRateLimit = getEnvInt("SEARCH_RATE_LIMIT", 120)
}

// DatabaseURL returns the lib/pq connection string
func (c *Config) DatabaseURL() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode)
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

func secretOrEnv(secret, envVar, defaultValue string) string {
	if value := readSecret(secret); value != "" {
		return value
	}
	return getEnv(envVar, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
