// Package bigcache provides an off-heap memory tier backed by
// allegro/bigcache. Values are kept as codec bytes, so every hit pays a
// decode; in exchange large caches put no pressure on the garbage collector.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/diskmemo/codec"
	"github.com/unkn0wn-root/diskmemo/provider"
)

type Provider[V any] struct {
	c     *bc.BigCache
	codec codec.Codec[V]
}

var _ provider.Provider[[]byte] = (*Provider[[]byte])(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New[V any](cfg Config, c codec.Codec[V]) (*Provider[V], error) {
	if c == nil {
		return nil, errors.New("bigcache: nil codec")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	bcache, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider[V]{c: bcache, codec: c}, nil
}

func (p *Provider[V]) Get(key string) (V, bool) {
	var zero V
	b, err := p.c.Get(key)
	if err != nil {
		return zero, false
	}
	v, err := p.codec.Decode(b)
	if err != nil {
		// self-heal: an entry we cannot decode is as good as absent
		_ = p.c.Delete(key)
		return zero, false
	}
	return v, true
}

// Set drops values the codec cannot encode or that exceed bigcache's shard
// size; the disk tier still holds them.
func (p *Provider[V]) Set(key string, value V) {
	b, err := p.codec.Encode(value)
	if err != nil {
		return
	}
	_ = p.c.Set(key, b)
}

func (p *Provider[V]) Len() int { return p.c.Len() }

func (p *Provider[V]) Close(_ context.Context) error {
	return p.c.Close()
}
