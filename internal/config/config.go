// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Rate     RateLimitConfig
	Import   ImportConfig
	Image    ImageConfig
	Storage  StorageConfig
	Resolve  ResolveConfig
	Cache    CacheConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true" secret:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies pending schema migrations at startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// RedisConfig holds the connection used by the login rate limiter.
// When Addr is empty the limiter falls back to process memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD" secret:"true"`
	DB       int    `env:"REDIS_DB" default:"0"`
}

// Enabled reports whether a Redis server is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// AuthConfig holds admin session settings.
type AuthConfig struct {
	// AdminPasswordHash is the bcrypt hash of the admin password.
	// Generate one with `opticctl hash-password`.
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH" secret:"true"`

	// AdminPassword is a plain-text fallback for local development only.
	AdminPassword string `env:"ADMIN_PASSWORD" secret:"true"`

	// SessionSecret signs admin session tokens (required, at least 32 bytes)
	SessionSecret string `env:"ADMIN_SESSION_SECRET" required:"true" secret:"true"`

	// SessionTTL is how long an admin session stays valid (default: 24h)
	SessionTTL time.Duration `env:"ADMIN_SESSION_TTL" default:"24h"`

	// CookieName is the admin session cookie name (default: admin_auth)
	CookieName string `env:"ADMIN_COOKIE_NAME" default:"admin_auth"`

	// SecureCookie sets the Secure attribute on session cookies (default: true)
	SecureCookie bool `env:"ADMIN_SECURE_COOKIE" default:"true"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether the global per-IP limit is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the global rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// LoginAttempts is the number of login attempts allowed per window (default: 5)
	LoginAttempts int `env:"RATE_LIMIT_LOGIN_ATTEMPTS" default:"5"`

	// LoginWindow is the sliding window for login attempts (default: 15m)
	LoginWindow time.Duration `env:"RATE_LIMIT_LOGIN_WINDOW" default:"15m"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum CSV size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel import batches (default: 2)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single import batch (default: 5m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"5m"`
}

// ImageConfig holds optic image upload settings.
type ImageConfig struct {
	// MaxSize is the maximum image size in bytes (default: 2MB)
	MaxSize int64 `env:"IMAGE_MAX_SIZE" default:"2097152"`
}

// StorageConfig selects and configures the image blob store.
type StorageConfig struct {
	// Provider is "local" or "s3" (default: local)
	Provider string `env:"STORAGE_PROVIDER" default:"local"`

	// Bucket is the object bucket (default: optic-images)
	Bucket string `env:"STORAGE_BUCKET" default:"optic-images"`

	Region    string `env:"STORAGE_REGION" default:"us-east-1"`
	Endpoint  string `env:"STORAGE_ENDPOINT"`
	PathStyle bool   `env:"STORAGE_PATH_STYLE" default:"false"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" secret:"true"`
	SecretKey string `env:"STORAGE_SECRET_KEY" secret:"true"`

	// PublicBaseURL prefixes object keys in returned URLs.
	// Defaults to the bucket's S3 URL, or /uploads for local storage.
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL"`

	// LocalDir is where the local provider writes files (default: ./uploads)
	LocalDir string `env:"STORAGE_LOCAL_DIR" default:"./uploads"`
}

// ResolveConfig holds compatibility resolution settings.
type ResolveConfig struct {
	// Timeout bounds a single resolution (default: 10s)
	Timeout time.Duration `env:"RESOLVE_TIMEOUT" default:"10s"`

	// MaxConcurrent bounds parallel sub-fetches per resolution (default: 8)
	MaxConcurrent int `env:"RESOLVE_MAX_CONCURRENT" default:"8"`

	// SessionIdle is how long an idle UI session's state is kept (default: 30m)
	SessionIdle time.Duration `env:"RESOLVE_SESSION_IDLE" default:"30m"`

	// SweepInterval is how often idle sessions are swept (default: 5m)
	SweepInterval time.Duration `env:"RESOLVE_SWEEP_INTERVAL" default:"5m"`
}

// CacheConfig holds listing cache settings.
type CacheConfig struct {
	// Size is the number of cached listings (default: 256)
	Size int `env:"CACHE_SIZE" default:"256"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
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
