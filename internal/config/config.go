// Package config loads service configuration from environment variables with
// defaults, and validates it on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Pipeline  PipelineConfig
	Artifacts ArtifactConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including the wait for
	// in-flight documents (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig selects the document store. An empty URL disables
// document persistence.
type DatabaseConfig struct {
	// URL is a postgres:// URL or a sqlite:// path
	URL string `env:"CDM_DATABASE_URL" envAlt:"DATABASE_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// PipelineConfig holds document processing settings.
type PipelineConfig struct {
	// ConfigDir is the root of the mapping/validation configuration tree
	ConfigDir string `env:"CDM_CONFIG_DIR" default:"config"`

	// MaxConcurrent is the number of documents processed in parallel (default: 4)
	MaxConcurrent int `env:"PIPELINE_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a request waits for a processing slot (default: 10s)
	MaxWait time.Duration `env:"PIPELINE_MAX_WAIT" default:"10s"`

	// Timeout bounds a single pipeline run (default: 60s)
	Timeout time.Duration `env:"PIPELINE_TIMEOUT" default:"60s"`

	// MaxBodyBytes bounds a submitted document payload (default: 10MB)
	MaxBodyBytes int64 `env:"PIPELINE_MAX_BODY_BYTES" default:"10485760"`
}

// ArtifactConfig controls where run artifacts are written. An empty Dir
// disables artifact output.
type ArtifactConfig struct {
	Dir string `env:"ARTIFACT_DIR"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the limit per client IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
