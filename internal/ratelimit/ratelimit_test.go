package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wish-board/internal/cache"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCounter(t *testing.T) *cache.MemoryCounter {
	t.Helper()
	c := cache.NewMemoryCounter(time.Hour)
	t.Cleanup(func() { c.Close() })
	return c
}

type brokenCounter struct{}

func (brokenCounter) Incr(context.Context, string, time.Duration) (cache.CounterValue, error) {
	return cache.CounterValue{}, errors.New("connection refused")
}

func TestScopeKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		route      string
		perRoute   bool
		want       string
	}{
		{name: "ipv4 with port", remoteAddr: "10.0.0.1:54321", want: "ratelimit:10.0.0.1"},
		{name: "bare ip from RealIP", remoteAddr: "10.0.0.1", want: "ratelimit:10.0.0.1"},
		{name: "ipv6 with port", remoteAddr: "[::1]:8080", want: "ratelimit:::1"},
		{name: "route ignored by default", remoteAddr: "10.0.0.1:1", route: "/api/wishes", want: "ratelimit:10.0.0.1"},
		{name: "per route", remoteAddr: "10.0.0.1:1", route: "/api/wishes", perRoute: true, want: "ratelimit:10.0.0.1:/api/wishes"},
		{name: "empty address", remoteAddr: "", want: "ratelimit:unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopeKey(tt.remoteAddr, tt.route, tt.perRoute))
		})
	}
}

func TestLimiter_Admit(t *testing.T) {
	ctx := context.Background()
	l := New(newTestCounter(t), Config{Limit: 3, Window: time.Minute}, silentLogger())

	for i := 1; i <= 3; i++ {
		d := l.Admit(ctx, "ratelimit:a")
		require.True(t, d.Allowed, "request %d should be admitted", i)
		assert.Equal(t, 3-i, d.Remaining())
	}

	d := l.Admit(ctx, "ratelimit:a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining())

	assert.True(t, l.Admit(ctx, "ratelimit:b").Allowed, "other scopes keep their own budget")
}

func TestLimiter_FailsOpen(t *testing.T) {
	l := New(brokenCounter{}, Config{Limit: 1, Window: time.Minute}, silentLogger())

	for i := 0; i < 5; i++ {
		assert.True(t, l.Admit(context.Background(), "ratelimit:a").Allowed)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(newTestCounter(t), Config{}, silentLogger())
	assert.Equal(t, DefaultLimit, l.cfg.Limit)
	assert.Equal(t, DefaultWindow, l.cfg.Window)
}

func TestMiddleware_SixtyFirstRequestRejected(t *testing.T) {
	var served atomic.Int32
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	l := New(newTestCounter(t), Config{Limit: 60, Window: time.Minute}, silentLogger())
	h := l.Middleware(next)

	for i := 1; i <= 60; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/wishes", nil)
		req.RemoteAddr = "192.0.2.7:40000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/wishes", nil)
	req.RemoteAddr = "192.0.2.7:40001"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate_limited","message":"Too many requests"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, int32(60), served.Load(), "rejected request must not reach the handler")
}

func TestMiddleware_ConcurrentBurstRespectsLimit(t *testing.T) {
	var served atomic.Int32
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
	})

	l := New(newTestCounter(t), Config{Limit: 25, Window: time.Minute}, silentLogger())
	h := l.Middleware(next)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/api/public-wishes", nil)
			req.RemoteAddr = "198.51.100.1:1234"
			h.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(25), served.Load())
}
