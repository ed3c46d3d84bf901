// Package cache provides the key/value store used for read-through caching of
// wish lists and feed pages, and the atomic counters used by the rate
// limiter. Both come in an in-process flavour and a Redis flavour; a
// deployment picks one backend for both.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// FeedPrefix namespaces every cached feed page.
	FeedPrefix = "public-wishes:"
	// WishesPrefix namespaces every owner's cached wish list.
	WishesPrefix = "wishes:"

	DefaultCapacity = 500
	DefaultTTL      = time.Hour
)

// Store is a string-keyed byte store with per-entry expiry.
//
// Values are copied in and out, so a caller never observes a partially
// written entry or one aliased by another goroutine.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key beginning with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetJSON loads key and decodes it into a T. A value that fails to decode is
// treated as a miss.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var out T

	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, nil
	}
	return out, true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encoding %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}

// Key joins parts with ":". Every part is query-escaped so user-supplied
// text such as a search term cannot collide with the separator.
func Key(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(url.QueryEscape(p))
	}
	return b.String()
}

// FeedKey is the cache key of one feed page. Two queries share a key only if
// every parameter matches.
func FeedKey(page, limit int, sortBy, sortOrder, search string) string {
	if search == "" {
		search = "no-search"
	} else {
		search = "q=" + search
	}
	return Key(FeedPrefix, strconv.Itoa(page), strconv.Itoa(limit), sortBy, sortOrder, search)
}

// WishesKey is the cache key of one owner's wish list.
func WishesKey(ownerID string) string {
	return Key(WishesPrefix, ownerID)
}
