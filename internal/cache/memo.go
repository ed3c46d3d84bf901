package cache

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// MemoConfig sizes a Memo.
type MemoConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

// DefaultMemoConfig suits small, hot lookups such as identities.
func DefaultMemoConfig() MemoConfig {
	return MemoConfig{
		Capacity:           10000,
		NumShards:          16,
		TTL:                30 * time.Second,
		EvictionPercentage: 10,
	}
}

// Memo is an in-process read-through cache for typed values. Concurrent
// misses for the same key share a single fetch. Fetch errors are not cached.
type Memo[T any] struct {
	client *sturdyc.Client[T]
}

func NewMemo[T any](cfg MemoConfig) *Memo[T] {
	def := DefaultMemoConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.NumShards <= 0 {
		cfg.NumShards = def.NumShards
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.EvictionPercentage < 1 || cfg.EvictionPercentage > 100 {
		cfg.EvictionPercentage = def.EvictionPercentage
	}

	return &Memo[T]{
		client: sturdyc.New[T](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage),
	}
}

// Get returns the cached value for key, calling fetch on a miss.
func (m *Memo[T]) Get(ctx context.Context, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	return m.client.GetOrFetch(ctx, key, fetch)
}

// Forget drops key so the next Get fetches it again.
func (m *Memo[T]) Forget(key string) {
	m.client.Delete(key)
}
