package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment selects where configuration is read from: docker secrets in
// production, plain environment variables in CI, and secrets with
// environment fallbacks everywhere else.
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	CI          Environment = "ci"
	Production  Environment = "production"
)

var environmentAliases = map[string]Environment{
	"development": Development,
	"dev":         Development,
	"local":       Development,
	"test":        Test,
	"ci":          CI,
	"production":  Production,
	"prod":        Production,
}

// ParseEnvironment maps an ENV value such as "prod" or "Production" to its
// Environment.
func ParseEnvironment(name string) (Environment, bool) {
	env, ok := environmentAliases[strings.ToLower(strings.TrimSpace(name))]
	return env, ok
}

// GetEnvironment reads the environment from CI and ENV. A truthy CI wins;
// an empty or unknown ENV means development.
func GetEnvironment() Environment {
	if ci, _ := strconv.ParseBool(os.Getenv("CI")); ci {
		return CI
	}
	if env, ok := ParseEnvironment(os.Getenv("ENV")); ok {
		return env
	}
	return Development
}

// IsProduction returns true if the current environment is production
func IsProduction() bool {
	return GetEnvironment() == Production
}
