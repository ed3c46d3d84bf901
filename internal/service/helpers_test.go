package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/wish-board/internal/cache"
	"github.com/sakif/wish-board/internal/model"
	"github.com/sakif/wish-board/internal/repository"
	"github.com/sakif/wish-board/internal/repository/memory"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// brokenCache fails every operation. Reads must fall back to the store and
// writes must still succeed.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errCacheDown }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (brokenCache) Delete(context.Context, string) error         { return errCacheDown }
func (brokenCache) DeleteByPrefix(context.Context, string) error { return errCacheDown }

type fixture struct {
	store *memory.Store
	cache *cache.Memory
	wish  *WishService
	feed  *FeedService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	c := cache.NewMemory(cache.DefaultCapacity, cache.DefaultTTL)
	logger := silentLogger()
	return &fixture{
		store: store,
		cache: c,
		wish:  NewWishService(store, c, time.Hour, logger),
		feed:  NewFeedService(store, c, time.Hour, logger),
	}
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com"}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

// cached reports whether key is stored under scope's current generation.
func (f *fixture) cached(t *testing.T, scope, key string) bool {
	t.Helper()
	ctx := context.Background()
	vkey, err := cache.NewVersions(f.cache).Key(ctx, scope, key)
	require.NoError(t, err)
	_, ok, err := f.cache.Get(ctx, vkey)
	require.NoError(t, err)
	return ok
}

func (f *fixture) feedCached(t *testing.T, q model.FeedQuery) bool {
	t.Helper()
	return f.cached(t, cache.FeedPrefix, cache.FeedKey(q.Page, q.Limit, string(q.SortBy), string(q.SortOrder), q.Search))
}

func (f *fixture) listCached(t *testing.T, ownerID string) bool {
	t.Helper()
	return f.cached(t, cache.WishesKey(ownerID), cache.WishesKey(ownerID))
}

// gatedRepo holds the first list read after it has loaded, until release is
// closed, so a test can interleave a write between load and cache fill.
type gatedRepo struct {
	repository.WishRepository
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRepo(inner repository.WishRepository) *gatedRepo {
	return &gatedRepo{WishRepository: inner, loaded: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRepo) hold() {
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
}

func (g *gatedRepo) ListPublic(ctx context.Context, q model.FeedQuery) ([]model.FeedItem, int, error) {
	items, total, err := g.WishRepository.ListPublic(ctx, q)
	g.hold()
	return items, total, err
}

func (g *gatedRepo) ListWishes(ctx context.Context, ownerID string) ([]model.Wish, error) {
	wishes, err := g.WishRepository.ListWishes(ctx, ownerID)
	g.hold()
	return wishes, err
}
