package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dmitrymomot/linkguard/pkg/httpserver"
	"github.com/dmitrymomot/linkguard/pkg/logger"
	"github.com/dmitrymomot/linkguard/pkg/mongo"
	"github.com/dmitrymomot/linkguard/pkg/pg"
	"github.com/dmitrymomot/linkguard/pkg/ratelimit"
	"github.com/dmitrymomot/linkguard/pkg/redis"
	"github.com/dmitrymomot/linkguard/pkg/token"
)

// Store backends selectable through NONCE_BACKEND and RATE_LIMIT_BACKEND.
const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
	backendMongo    = "mongo"
)

// Config is the full process configuration, read from the environment.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	AppName  string `env:"APP_NAME" envDefault:"linkguard"`
	LogLevel string `env:"LOG_LEVEL"` // overrides the APP_ENV preset when set

	TokenSecret   string        `env:"TOKEN_SECRET,required"`
	TokenLifetime time.Duration `env:"TOKEN_LIFETIME" envDefault:"24h"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080/checkout"`
	IssuerAPIKey  string        `env:"ISSUER_API_KEY"`

	TrustProxyHeaders bool   `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
	RateLimitBackend  string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`

	NonceBackend       string        `env:"NONCE_BACKEND" envDefault:"memory"`
	NonceTTL           time.Duration `env:"NONCE_TTL" envDefault:"24h"`
	NonceStoreTimeout  time.Duration `env:"NONCE_STORE_TIMEOUT" envDefault:"2s"`
	NoncePurgeInterval time.Duration `env:"NONCE_PURGE_INTERVAL" envDefault:"10m"`

	RateLimit ratelimit.Config
	HTTP      httpserver.Config
	Redis     redis.Config
	Postgres  pg.Config
	Mongo     mongo.Config
}

var errInvalid = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalid, fmt.Sprintf(format, args...))
}

// Validate rejects configurations that would start but misbehave.
func (c *Config) Validate() error {
	switch c.AppEnv {
	case logger.EnvDevelopment, logger.EnvStaging, logger.EnvProduction:
	default:
		return invalid("APP_ENV must be development, staging or production, got %q", c.AppEnv)
	}
	if c.LogLevel != "" {
		if _, err := logger.ParseLevel(c.LogLevel); err != nil {
			return invalid("LOG_LEVEL: %v", err)
		}
	}

	if len(c.TokenSecret) < token.MinSecretLength {
		return invalid("TOKEN_SECRET must be at least %d bytes", token.MinSecretLength)
	}
	if c.TokenLifetime <= 0 {
		return invalid("TOKEN_LIFETIME must be positive")
	}
	// A record that expires before its token would let the token be replayed.
	if c.NonceTTL < c.TokenLifetime {
		return invalid("NONCE_TTL (%s) must not be shorter than TOKEN_LIFETIME (%s)", c.NonceTTL, c.TokenLifetime)
	}
	if c.NonceStoreTimeout < 0 || c.NoncePurgeInterval < 0 {
		return invalid("NONCE_STORE_TIMEOUT and NONCE_PURGE_INTERVAL must not be negative")
	}

	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("PUBLIC_BASE_URL must be an absolute URL, got %q", c.PublicBaseURL)
	}

	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 || c.RateLimit.MaxKeys <= 0 {
		return invalid("RATE_LIMIT, RATE_LIMIT_WINDOW and RATE_LIMIT_MAX_KEYS must be positive")
	}

	switch c.RateLimitBackend {
	case backendMemory, backendRedis:
	default:
		return invalid("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimitBackend)
	}

	switch c.NonceBackend {
	case backendMemory, backendRedis:
	case backendPostgres:
		if c.Postgres.ConnectionString == "" {
			return invalid("PG_CONN_URL is required for the postgres nonce backend")
		}
	case backendMongo:
		if c.Mongo.ConnectionURL == "" {
			return invalid("MONGODB_URL is required for the mongo nonce backend")
		}
	default:
		return invalid("NONCE_BACKEND must be memory, redis, postgres or mongo, got %q", c.NonceBackend)
	}

	return nil
}

func (c *Config) usesRedis() bool {
	return c.NonceBackend == backendRedis || c.RateLimitBackend == backendRedis
}

func (c *Config) baseURL() *url.URL {
	u, _ := url.Parse(c.PublicBaseURL)
	return u
}

// newLogger builds the process logger from the environment preset.
func newLogger(c Config, extractors ...logger.ContextExtractor) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(c.AppEnv, c.AppName),
		logger.WithContextExtractors(extractors...),
	}
	if c.LogLevel != "" {
		lvl, _ := logger.ParseLevel(c.LogLevel)
		opts = append(opts, logger.WithLevel(lvl))
	}
	return logger.New(opts...)
}
