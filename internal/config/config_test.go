package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

func TestLoad_Defaults(t *testing.T) {
	v := NewViper()
	v.Set("auth.jwt_secret", testSecret)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, BackendMemory, cfg.SharedBackend)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 500, cfg.CacheCapacity)
	assert.Equal(t, time.Hour, cfg.FeedTTL)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.TrustProxy, "forwarded headers are ignored unless enabled")
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("WISHES_AUTH_JWT_SECRET", testSecret)
	t.Setenv("WISHES_SHARED_BACKEND", "Redis")
	t.Setenv("WISHES_REDIS_ADDR", "cache:6379")
	t.Setenv("WISHES_RATELIMIT_LIMIT", "60")
	t.Setenv("WISHES_RATELIMIT_WINDOW", "1m")
	t.Setenv("WISHES_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("WISHES_HTTP_TRUST_PROXY", "true")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.SharedBackend)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"short secret", "auth.jwt_secret", "short"},
		{"unknown backend", "shared.backend", "memcached"},
		{"unknown driver", "database.driver", "postgres"},
		{"zero limit", "ratelimit.limit", 0},
		{"bad log format", "log.format", "xml"},
		{"bad port", "http.port", 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			v.Set("auth.jwt_secret", testSecret)
			v.Set(tt.key, tt.val)

			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	base := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(local, []byte("WISHES_DOTENV_SAMPLE=local\n"), 0o600))
	require.NoError(t, os.WriteFile(base, []byte("WISHES_DOTENV_SAMPLE=base\nWISHES_DOTENV_BASE_ONLY=yes\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("WISHES_DOTENV_SAMPLE")
		os.Unsetenv("WISHES_DOTENV_BASE_ONLY")
	})

	loaded := LoadDotEnv(local, base, filepath.Join(dir, "missing.env"))
	assert.Equal(t, []string{local, base}, loaded)
	assert.Equal(t, "local", os.Getenv("WISHES_DOTENV_SAMPLE"), ".env.local wins")
	assert.Equal(t, "yes", os.Getenv("WISHES_DOTENV_BASE_ONLY"))
}
