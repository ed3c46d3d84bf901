// Package config loads runtime configuration. Values come, in increasing
// priority, from defaults, an optional config file, .env files, environment
// variables prefixed WISHES_ and command-line flags bound by cmd/server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "WISHES"

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	Port int
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable it only behind a proxy that overwrites those headers.
	TrustProxy bool

	DatabaseDriver string
	DatabasePath   string

	JWTSecret    string
	TokenTTL     time.Duration
	CookieSecure bool
	BcryptCost   int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// SharedBackend selects where both the read cache and the rate-limit
	// counters live.
	SharedBackend string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CacheCapacity int
	FeedTTL       time.Duration
	WishesTTL     time.Duration
	IdentityTTL   time.Duration

	RateLimit         int
	RateLimitWindow   time.Duration
	RateLimitPerRoute bool

	LogLevel  string
	LogFormat string

	CORSOrigins []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.port", 8080)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("database.path", "data/wishes.db")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.callback_url", "http://localhost:8080/auth/google/callback")
	v.SetDefault("shared.backend", BackendMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.capacity", 500)
	v.SetDefault("cache.feed_ttl", time.Hour)
	v.SetDefault("cache.wishes_ttl", time.Hour)
	v.SetDefault("identity.cache_ttl", 30*time.Second)
	v.SetDefault("ratelimit.limit", 100)
	v.SetDefault("ratelimit.window", 15*time.Minute)
	v.SetDefault("ratelimit.per_route", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("cors.origins", "*")
}

// LoadDotEnv loads .env files with priority .env.local > .env. godotenv
// never overwrites variables that are already set, so the real environment
// always wins. It returns the files actually loaded.
func LoadDotEnv(candidates ...string) []string {
	if len(candidates) == 0 {
		candidates = []string{".env.local", ".env"}
	}
	var loaded []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}

// Load parses runtime configuration from viper.
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		Port:               v.GetInt("http.port"),
		TrustProxy:         v.GetBool("http.trust_proxy"),
		DatabaseDriver:     strings.ToLower(v.GetString("database.driver")),
		DatabasePath:       v.GetString("database.path"),
		JWTSecret:          v.GetString("auth.jwt_secret"),
		TokenTTL:           v.GetDuration("auth.token_ttl"),
		CookieSecure:       v.GetBool("auth.cookie_secure"),
		BcryptCost:         v.GetInt("auth.bcrypt_cost"),
		GoogleClientID:     v.GetString("google.client_id"),
		GoogleClientSecret: v.GetString("google.client_secret"),
		GoogleCallbackURL:  v.GetString("google.callback_url"),
		SharedBackend:      strings.ToLower(v.GetString("shared.backend")),
		RedisAddr:          v.GetString("redis.addr"),
		RedisPassword:      v.GetString("redis.password"),
		RedisDB:            v.GetInt("redis.db"),
		CacheCapacity:      v.GetInt("cache.capacity"),
		FeedTTL:            v.GetDuration("cache.feed_ttl"),
		WishesTTL:          v.GetDuration("cache.wishes_ttl"),
		IdentityTTL:        v.GetDuration("identity.cache_ttl"),
		RateLimit:          v.GetInt("ratelimit.limit"),
		RateLimitWindow:    v.GetDuration("ratelimit.window"),
		RateLimitPerRoute:  v.GetBool("ratelimit.per_route"),
		LogLevel:           strings.ToLower(v.GetString("log.level")),
		LogFormat:          strings.ToLower(v.GetString("log.format")),
		CORSOrigins:        splitList(v.GetString("cors.origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if len(strings.TrimSpace(c.JWTSecret)) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("http.port %d is out of range", c.Port)
	}
	switch c.DatabaseDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverMemory, c.DatabaseDriver)
	}
	switch c.SharedBackend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("redis.addr is required when shared.backend is redis")
		}
	default:
		return fmt.Errorf("shared.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.SharedBackend)
	}
	if c.RateLimit <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("ratelimit.limit and ratelimit.window must be positive")
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
