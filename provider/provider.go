// Package provider defines the in-memory tier used by diskmemo.
//
// A Provider holds decoded values keyed by fingerprint. It is only ever
// filled with values that came from a successful producer call or a
// successful decode of a disk entry, so implementations can return what they
// stored without validation.
package provider

import (
	"context"
	"time"
)

// Provider is a bounded, concurrency-safe map from fingerprint to value.
type Provider[V any] interface {
	// Get returns (value, true) on hit and marks the key most recently used.
	Get(key string) (V, bool)

	// Set stores value, evicting the least recently used entry when full.
	Set(key string, value V)

	// Len reports the number of live entries (best-effort for tiers that
	// expire lazily).
	Len() int

	// Close releases resources.
	Close(ctx context.Context) error
}

// New returns the default memory tier for the given capacity.
// capacity <= 0 disables the memory tier (every lookup misses).
// ttl <= 0 means entries never expire from memory.
func New[V any](capacity int, ttl time.Duration) Provider[V] {
	if capacity <= 0 {
		return Null[V]{}
	}
	return NewLRU[V](capacity, ttl)
}
