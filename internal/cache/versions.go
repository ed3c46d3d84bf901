package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
)

const (
	generationPrefix = "generation:"

	// GenerationTTL bounds how long an idle scope keeps its generation. An
	// expired generation only costs one round of misses.
	GenerationTTL = 24 * time.Hour
)

// Versions keeps one generation token per scope in the shared store. Cached
// values are stored under Versioned(key, generation); Bump replaces the
// token, so a slow read that loaded data before a write lands its result
// under a generation no reader asks for again.
//
// Tokens are never reused, so two racing Bumps or a Bump racing a first
// read can only ever retire a generation, never revive one.
type Versions struct {
	store Store
}

func NewVersions(store Store) *Versions {
	return &Versions{store: store}
}

// Versioned qualifies key with gen. The result keeps key as its prefix, so
// prefix deletion still reaches versioned entries.
func Versioned(key, gen string) string {
	return key + "@" + gen
}

// Key returns key qualified by the current generation of scope, starting a
// generation when scope has none.
func (v *Versions) Key(ctx context.Context, scope, key string) (string, error) {
	gen, err := v.current(ctx, scope)
	if err != nil {
		return "", err
	}
	return Versioned(key, gen), nil
}

// Bump starts a new generation for scope and returns the one it replaced,
// or "" when scope had none.
func (v *Versions) Bump(ctx context.Context, scope string) (string, error) {
	prev, _, err := v.store.Get(ctx, generationPrefix+scope)
	if err != nil {
		return "", fmt.Errorf("cache: reading generation of %s: %w", scope, err)
	}
	if _, err := v.start(ctx, scope); err != nil {
		return "", err
	}
	return string(prev), nil
}

func (v *Versions) current(ctx context.Context, scope string) (string, error) {
	raw, ok, err := v.store.Get(ctx, generationPrefix+scope)
	if err != nil {
		return "", fmt.Errorf("cache: reading generation of %s: %w", scope, err)
	}
	if ok && len(raw) > 0 {
		return string(raw), nil
	}
	return v.start(ctx, scope)
}

func (v *Versions) start(ctx context.Context, scope string) (string, error) {
	gen := xid.New().String()
	if err := v.store.Set(ctx, generationPrefix+scope, []byte(gen), GenerationTTL); err != nil {
		return "", fmt.Errorf("cache: starting generation of %s: %w", scope, err)
	}
	return gen, nil
}
