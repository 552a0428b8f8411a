// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable holding the YAML file path.
const EnvConfigPath = "SPECTRAL_CONFIG"

// Config is the service configuration.
type Config struct {
	DatabaseURL string    `yaml:"database_url"`
	HTTPAddr    string    `yaml:"http_addr"`
	Version     string    `yaml:"version"`
	Auth        Auth      `yaml:"auth"`
	Import      Import    `yaml:"import"`
	RateLimit   RateLimit `yaml:"rate_limit"`
	Log         Log       `yaml:"log"`
}

// Auth configures session tokens.
type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Import configures the signed bulk-import endpoint.
type Import struct {
	HMACSecret     string `yaml:"hmac_secret"`
	MaxSkewSeconds int    `yaml:"max_skew_seconds"`
}

// MaxSkew returns the accepted signature age.
func (i Import) MaxSkew() time.Duration {
	return time.Duration(i.MaxSkewSeconds) * time.Second
}

// RateLimit configures the admin sliding window.
type RateLimit struct {
	Window   time.Duration `yaml:"window"`
	Delete   int           `yaml:"delete"`
	Mutation int           `yaml:"mutation"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:  ":8080",
		Version:   "dev",
		Auth:      Auth{TokenTTL: 24 * time.Hour},
		Import:    Import{MaxSkewSeconds: 300},
		RateLimit: RateLimit{Window: 5 * time.Minute, Delete: 10, Mutation: 50},
		Log:       Log{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. path overrides SPECTRAL_CONFIG; an empty
// path with no variable set skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.Version = getenvDefault("APP_VERSION", cfg.Version)
	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.Auth.JWTSecret))
	cfg.Auth.TokenTTL = getenvDuration("AUTH_TOKEN_TTL", cfg.Auth.TokenTTL)
	cfg.Import.HMACSecret = getenvDefault("IMPORT_HMAC_SECRET", cfg.Import.HMACSecret)
	cfg.Import.MaxSkewSeconds = getenvIntDefault("IMPORT_MAX_SKEW_SECONDS", cfg.Import.MaxSkewSeconds)
	cfg.RateLimit.Window = getenvDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.Delete = getenvIntDefault("RATE_LIMIT_DELETE", cfg.RateLimit.Delete)
	cfg.RateLimit.Mutation = getenvIntDefault("RATE_LIMIT_MUTATION", cfg.RateLimit.Mutation)
	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(getenvDefault("LOG_FORMAT", cfg.Log.Format))
	return cfg, nil
}

// ValidateServe checks the settings the API server cannot start without.
func (c Config) ValidateServe() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL or PG_DSN is required")
	}
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "AUTH_JWT_SECRET is required")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.Delete <= 0 || c.RateLimit.Mutation <= 0 {
		problems = append(problems, "rate limit window and thresholds must be positive")
	}
	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
