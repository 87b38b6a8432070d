package config

import (
	"errors"
	"fmt"
	"os"
)

// ValidationError is one invalid or missing setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// sources lists the settings an environment must provide explicitly.
// Development and test fall back to local defaults, so they need nothing.
type sources struct {
	envVars []string
	secrets []string
}

var requirements = map[Environment]sources{
	CI: {
		envVars: []string{"SERVER_PORT", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME"},
	},
	Production: {
		secrets: []string{"server_port", "db_host", "db_port", "db_user", "db_password", "db_name"},
	},
}

var (
	embeddingProviders = map[string]bool{"local": true, "openai": true}
	cacheBackends      = map[string]bool{"postgres": true, "redis": true}
)

// ValidateConfig checks cfg against the requirements of the current
// environment and reports every problem at once.
func ValidateConfig(cfg *Config) error {
	var errs []error
	reqs := requirements[GetEnvironment()]
	for _, name := range reqs.envVars {
		if os.Getenv(name) == "" {
			errs = append(errs, ValidationError{Field: name, Message: "required environment variable is not set"})
		}
	}
	for _, name := range reqs.secrets {
		if readSecret(name) == "" {
			errs = append(errs, ValidationError{Field: name, Message: "required secret is not set"})
		}
	}

	if !embeddingProviders[cfg.EmbeddingProvider] {
		errs = append(errs, ValidationError{Field: "EMBEDDING_PROVIDER", Message: fmt.Sprintf("unknown provider %q", cfg.EmbeddingProvider)})
	} else if cfg.EmbeddingProvider == "openai" && cfg.EmbeddingAPIKey == "" {
		errs = append(errs, ValidationError{Field: "EMBEDDING_API_KEY", Message: "required when EMBEDDING_PROVIDER is openai"})
	}
	if !cacheBackends[cfg.EmbeddingCacheBackend] {
		errs = append(errs, ValidationError{Field: "EMBEDDING_CACHE_BACKEND", Message: fmt.Sprintf("unknown backend %q", cfg.EmbeddingCacheBackend)})
	}
	if cfg.SearchRateLimit < 0 {
		errs = append(errs, ValidationError{Field: "SEARCH_RATE_LIMIT", Message: "must not be negative"})
	}
	if err := cfg.Search.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
