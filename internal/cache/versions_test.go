package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions_KeyIsStableUntilBump(t *testing.T) {
	ctx := context.Background()
	v := NewVersions(NewMemory(10, time.Hour))
	page := FeedKey(1, 10, "date", "desc", "")

	k1, err := v.Key(ctx, FeedPrefix, page)
	require.NoError(t, err)
	k2, err := v.Key(ctx, FeedPrefix, page)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, page), "versioned keys stay under the logical key")

	prev, err := v.Bump(ctx, FeedPrefix)
	require.NoError(t, err)
	assert.Equal(t, k1, Versioned(page, prev))

	k3, err := v.Key(ctx, FeedPrefix, page)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestVersions_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	v := NewVersions(NewMemory(10, time.Hour))

	ana, err := v.Key(ctx, WishesKey("ana"), WishesKey("ana"))
	require.NoError(t, err)

	_, err = v.Bump(ctx, WishesKey("bob"))
	require.NoError(t, err)

	again, err := v.Key(ctx, WishesKey("ana"), WishesKey("ana"))
	require.NoError(t, err)
	assert.Equal(t, ana, again)
}

func TestVersions_BumpWithoutGeneration(t *testing.T) {
	v := NewVersions(NewMemory(10, time.Hour))
	prev, err := v.Bump(context.Background(), FeedPrefix)
	require.NoError(t, err)
	assert.Empty(t, prev)
}

func TestVersions_GenerationSurvivesPrefixDeletion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, time.Hour)
	v := NewVersions(m)

	k1, err := v.Key(ctx, FeedPrefix, "public-wishes:1")
	require.NoError(t, err)
	require.NoError(t, m.DeleteByPrefix(ctx, FeedPrefix))

	k2, err := v.Key(ctx, FeedPrefix, "public-wishes:1")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

type failingStore struct{ Store }

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errStoreDown }

func TestVersions_StoreErrors(t *testing.T) {
	v := NewVersions(failingStore{})

	_, err := v.Key(context.Background(), FeedPrefix, "k")
	assert.ErrorIs(t, err, errStoreDown)
	_, err = v.Bump(context.Background(), FeedPrefix)
	assert.ErrorIs(t, err, errStoreDown)
}
