// Package ratelimit admits or rejects requests with a fixed-window counter
// per client scope.
package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/wish-board/internal/cache"
)

const (
	DefaultLimit  = 100
	DefaultWindow = 15 * time.Minute

	keyPrefix = "ratelimit:"
)

// Config bounds how many requests a scope may make per window.
type Config struct {
	Limit  int
	Window time.Duration
	// PerRoute gives every route its own budget instead of one budget per
	// client address.
	PerRoute bool
}

// Decision is the outcome of one Admit call.
type Decision struct {
	Allowed bool
	Count   int64
	Limit   int
	ResetAt time.Time
}

// Remaining is how many more requests the scope may make this window.
func (d Decision) Remaining() int {
	if r := int64(d.Limit) - d.Count; r > 0 {
		return int(r)
	}
	return 0
}

// Limiter applies Config on top of a cache.Counter.
type Limiter struct {
	counter cache.Counter
	cfg     Config
	logger  *slog.Logger
}

func New(counter cache.Counter, cfg Config, logger *slog.Logger) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Limiter{counter: counter, cfg: cfg, logger: logger}
}

// ScopeKey derives the counter key for a request. It depends only on the
// client address and, when perRoute is set, the route. Ports are stripped so
// one client cannot multiply its budget by opening new connections.
func ScopeKey(remoteAddr, route string, perRoute bool) string {
	ip := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		ip = host
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}

	if perRoute && route != "" {
		return keyPrefix + ip + ":" + route
	}
	return keyPrefix + ip
}

// Admit counts one request against scopeKey. A counter backend failure
// admits the request.
func (l *Limiter) Admit(ctx context.Context, scopeKey string) Decision {
	v, err := l.counter.Incr(ctx, scopeKey, l.cfg.Window)
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, admitting request",
			slog.String("scope", scopeKey),
			slog.String("error", err.Error()),
		)
		return Decision{Allowed: true, Limit: l.cfg.Limit}
	}

	return Decision{
		Allowed: v.Count <= int64(l.cfg.Limit),
		Count:   v.Count,
		Limit:   l.cfg.Limit,
		ResetAt: v.ResetAt,
	}
}

// Middleware rejects over-limit requests with 429 before any handler or
// authentication runs. It expects chi's RealIP middleware to have set
// r.RemoteAddr.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := l.Admit(r.Context(), ScopeKey(r.RemoteAddr, r.URL.Path, l.cfg.PerRoute))

		if d.Count > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining()))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}

		if !d.Allowed {
			retry := int(time.Until(d.ResetAt).Seconds() + 0.5)
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"Too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
