// Package ristretto provides a memory tier backed by dgraph-io/ristretto.
//
// Ristretto admits entries through TinyLFU, so a Set may be dropped under
// pressure; a dropped entry only costs a later disk read.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/diskmemo/provider"
)

type Provider[V any] struct {
	c    *rc.Cache
	ttl  time.Duration
	cost func(V) int64
}

var _ provider.Provider[int] = (*Provider[int])(nil)

type Config[V any] struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// TTL applies to every entry; 0 means no expiry.
	TTL time.Duration
	// Cost weighs a value against MaxCost. Nil counts every entry as 1,
	// which makes MaxCost an item budget.
	Cost func(V) int64
}

func New[V any](cfg Config[V]) (*Provider[V], error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider[V]{c: c, ttl: cfg.TTL, cost: cfg.Cost}, nil
}

func (p *Provider[V]) Get(key string) (V, bool) {
	v, ok := p.c.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	val, ok := v.(V)
	if !ok {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		var zero V
		return zero, false
	}
	return val, true
}

func (p *Provider[V]) Set(key string, value V) {
	cost := int64(1)
	if p.cost != nil {
		cost = p.cost(value)
	}
	if p.c.SetWithTTL(key, value, cost, p.ttl) {
		// Sets are buffered; make this one visible to the next Get.
		p.c.Wait()
	}
}

// Len is approximate and needs Metrics enabled; it reports 0 otherwise.
func (p *Provider[V]) Len() int {
	m := p.c.Metrics
	if m == nil {
		return 0
	}
	added, evicted := m.KeysAdded(), m.KeysEvicted()
	if evicted > added {
		return 0
	}
	return int(added - evicted)
}

func (p *Provider[V]) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics is set).
func (p *Provider[V]) Metrics() *rc.Metrics { return p.c.Metrics }
