package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/wish-board/internal/cache"
)

// readCache is a service's view of the shared cache: versioned read-through
// on the way in, best-effort invalidation on the way out. Cache failures are
// logged and never surface to callers.
//
// Reads resolve the scope's generation before loading, and writes retire it
// after committing. A read that loaded pre-write data therefore stores it
// under a retired generation, where no later read finds it.
type readCache struct {
	store    cache.Store
	versions *cache.Versions
	ttl      time.Duration
	logger   *slog.Logger
}

func newReadCache(store cache.Store, ttl time.Duration, logger *slog.Logger) readCache {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return readCache{store: store, versions: cache.NewVersions(store), ttl: ttl, logger: logger}
}

// readThrough serves key within scope from the cache, or calls load and
// caches its result.
func readThrough[T any](ctx context.Context, rc readCache, scope, key string, load func() (T, error)) (T, error) {
	vkey, err := rc.versions.Key(ctx, scope, key)
	if err != nil {
		rc.logger.Warn("cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return load()
	}

	cached, ok, err := cache.GetJSON[T](ctx, rc.store, vkey)
	if err != nil {
		rc.logger.Warn("cache read failed", slog.String("key", vkey), slog.String("error", err.Error()))
	}
	if ok {
		return cached, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	if err := cache.SetJSON(ctx, rc.store, vkey, v, rc.ttl); err != nil {
		rc.logger.Warn("cache write failed", slog.String("key", vkey), slog.String("error", err.Error()))
	}
	return v, nil
}

// invalidateFeed retires the feed generation and drops every cached page.
func (rc readCache) invalidateFeed(ctx context.Context) {
	if _, err := rc.versions.Bump(ctx, cache.FeedPrefix); err != nil {
		rc.logger.Warn("feed cache invalidation failed", slog.String("error", err.Error()))
	}
	if err := rc.store.DeleteByPrefix(ctx, cache.FeedPrefix); err != nil {
		rc.logger.Warn("feed cache invalidation failed", slog.String("error", err.Error()))
	}
}

// invalidateOwner retires ownerID's list generation and drops the list cached
// under the one it replaced.
func (rc readCache) invalidateOwner(ctx context.Context, ownerID string) {
	if ownerID == "" {
		return
	}

	scope := cache.WishesKey(ownerID)
	prev, err := rc.versions.Bump(ctx, scope)
	if err != nil {
		rc.logger.Warn("wish list cache invalidation failed",
			slog.String("ownerID", ownerID),
			slog.String("error", err.Error()),
		)
		return
	}
	if prev == "" {
		return
	}
	if err := rc.store.Delete(ctx, cache.Versioned(scope, prev)); err != nil {
		rc.logger.Warn("wish list cache invalidation failed",
			slog.String("ownerID", ownerID),
			slog.String("error", err.Error()),
		)
	}
}
