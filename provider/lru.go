package provider

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is a fixed-capacity least-recently-used tier with an optional
// per-entry TTL counted from Set. Get promotes but does not extend the TTL.
type LRU[V any] struct {
	c *expirable.LRU[string, V]
}

var _ Provider[int] = (*LRU[int])(nil)

// NewLRU builds an LRU holding at most capacity entries. capacity must be > 0.
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 1
	}
	// expirable treats ttl <= 0 as "no expiry"
	return &LRU[V]{c: expirable.NewLRU[string, V](capacity, nil, ttl)}
}

func (l *LRU[V]) Get(key string) (V, bool) { return l.c.Get(key) }

func (l *LRU[V]) Set(key string, value V) { l.c.Add(key, value) }

func (l *LRU[V]) Len() int { return l.c.Len() }

// Contains reports presence without touching recency.
func (l *LRU[V]) Contains(key string) bool { return l.c.Contains(key) }

// Close drops every entry.
func (l *LRU[V]) Close(context.Context) error {
	l.c.Purge()
	return nil
}
