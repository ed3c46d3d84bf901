package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestMemory(capacity int, ttl time.Duration) (*Memory, *fakeClock) {
	clock := newFakeClock()
	m := NewMemory(capacity, ttl)
	m.now = clock.Now
	return m, clock
}

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(10, time.Minute)

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v1"), 0))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, m.Set(ctx, "k", []byte("v2"), 0))
	got, _, _ = m.Get(ctx, "k")
	assert.Equal(t, "v2", string(got))
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)

	// deleting an absent key is not an error
	assert.NoError(t, m.Delete(ctx, "k"))
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(10, time.Hour)

	require.NoError(t, m.Set(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, m.Set(ctx, "default", []byte("y"), 0))

	clock.Advance(999 * time.Millisecond)
	_, ok, _ := m.Get(ctx, "short")
	assert.True(t, ok, "entry should still be live just before expiry")

	clock.Advance(time.Millisecond)
	_, ok, _ = m.Get(ctx, "short")
	assert.False(t, ok, "entry should be absent once its ttl elapsed")
	assert.Equal(t, 1, m.Len(), "expired entry should be removed on access")

	clock.Advance(time.Hour)
	_, ok, _ = m.Get(ctx, "default")
	assert.False(t, ok, "store-wide ttl applies when Set passes zero")
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(3, time.Hour)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.Set(ctx, k, []byte(k), 0))
	}

	// touch "a" so "b" becomes the oldest
	_, ok, _ := m.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, m.Set(ctx, "d", []byte("d"), 0))

	assert.Equal(t, 3, m.Len())
	_, ok, _ = m.Get(ctx, "b")
	assert.False(t, ok, "b should have been evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok, _ := m.Get(ctx, k)
		assert.True(t, ok, "%s should still be cached", k)
	}
}

func TestMemory_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(100, time.Hour)

	keys := []string{
		FeedKey(1, 10, "date", "desc", ""),
		FeedKey(2, 10, "likes", "asc", "cake"),
		WishesKey("owner-1"),
	}
	for _, k := range keys {
		require.NoError(t, m.Set(ctx, k, []byte("{}"), 0))
	}

	require.NoError(t, m.DeleteByPrefix(ctx, FeedPrefix))

	for _, k := range keys[:2] {
		_, ok, _ := m.Get(ctx, k)
		assert.False(t, ok, "%s should be gone", k)
	}
	_, ok, _ := m.Get(ctx, keys[2])
	assert.True(t, ok, "keys outside the prefix survive")
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(10, time.Hour)

	in := []byte("hello")
	require.NoError(t, m.Set(ctx, "k", in, 0))
	in[0] = 'J'

	out, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "hello", string(out))

	out[0] = 'Y'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "hello", string(again))
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(50, time.Hour)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%s%d", FeedPrefix, (g*200+i)%80)
				_ = m.Set(ctx, key, []byte("v"), 0)
				_, _, _ = m.Get(ctx, key)
				if i%50 == 0 {
					_ = m.DeleteByPrefix(ctx, FeedPrefix)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 50)
}

func TestGetSetJSON(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, time.Hour)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, SetJSON(ctx, m, "p", payload{Name: "wish", Count: 3}, 0))

	got, ok, err := GetJSON[payload](ctx, m, "p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload{Name: "wish", Count: 3}, got)

	require.NoError(t, m.Set(ctx, "bad", []byte("{not json"), 0))
	_, ok, err = GetJSON[payload](ctx, m, "bad")
	assert.NoError(t, err)
	assert.False(t, ok, "undecodable entry is a miss")
}
