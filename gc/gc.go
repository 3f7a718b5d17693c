// Package gc removes cache entries that have not been read for a while.
//
// Entries are judged by access time, which every disk hit refreshes. On
// filesystems mounted noatime (or relatime, which only updates atime once a
// day or when it is older than mtime) entries may be collected earlier than
// LastAccess suggests; they are simply repopulated on the next call.
package gc

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/diskmemo/internal/fsstat"
	"github.com/unkn0wn-root/diskmemo/internal/util"
)

const (
	DefaultInterval    = 5 * time.Minute
	DefaultLastAccess  = time.Hour
	DefaultConcurrency = 100
)

type Options struct {
	// Root is the cache directory to sweep.
	Root string
	// LastAccess is how long an entry may go unread before it is removed.
	LastAccess time.Duration
	// Interval between sweeps started by Start.
	Interval time.Duration
	// Concurrency bounds parallel deletions.
	Concurrency int
	// OnError receives per-entry failures. They never abort a sweep.
	OnError func(path string, err error)
	// OnSweep receives the report of every completed sweep started by Start.
	OnSweep func(Report)
	// Now overrides the clock used for the cutoff.
	Now func() time.Time
}

// Report summarizes one sweep.
type Report struct {
	Scanned    int
	Removed    int
	Failed     int
	BytesFreed int64
	Elapsed    time.Duration
}

// Collector sweeps one cache root, on demand or on a ticker.
type Collector struct {
	opts Options

	mu      sync.Mutex
	running bool
	ticker  *time.Ticker
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(opts Options) *Collector {
	if opts.LastAccess <= 0 {
		opts.LastAccess = DefaultLastAccess
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Collector{opts: opts}
}

// Sweep walks Root once and removes every *.cache file whose access time is
// older than LastAccess. Temp files, lock markers and foreign files are never
// touched. A missing root is an empty sweep.
func (c *Collector) Sweep(ctx context.Context) (Report, error) {
	start := time.Now()
	cutoff := c.opts.Now().Add(-c.opts.LastAccess)

	var (
		rep     Report
		removed atomic.Int64
		failed  atomic.Int64
		freed   atomic.Int64
	)
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)

	walkErr := filepath.WalkDir(c.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == c.opts.Root {
				return err
			}
			c.report(path, err)
			return nil
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), util.CacheSuffix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.report(path, err)
			}
			return nil
		}
		rep.Scanned++
		st := fsstat.FromFileInfo(path, fi)
		if !st.Accessed.Before(cutoff) {
			return nil
		}
		size := fi.Size()
		g.Go(func() error {
			if err := os.Remove(path); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					failed.Add(1)
					c.report(path, err)
				}
				return nil
			}
			removed.Add(1)
			freed.Add(size)
			return nil
		})
		return nil
	})
	_ = g.Wait()

	rep.Removed = int(removed.Load())
	rep.Failed = int(failed.Load())
	rep.BytesFreed = freed.Load()
	rep.Elapsed = time.Since(start)

	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return rep, nil
		}
		return rep, walkErr
	}
	return rep, nil
}

func (c *Collector) report(path string, err error) {
	if c.opts.OnError != nil {
		c.opts.OnError(path, err)
	}
}

// Start runs one sweep right away and then every Interval until Close.
// Calling Start on a running collector does nothing.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.ticker = time.NewTicker(c.opts.Interval)
	c.stopCh = make(chan struct{})
	ticker, stopCh := c.ticker, c.stopCh

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.sweepOnce(ctx)
		for {
			select {
			case <-ticker.C:
				c.sweepOnce(ctx)
			case <-stopCh:
				return
			}
		}
	}()
}

func (c *Collector) sweepOnce(ctx context.Context) {
	rep, err := c.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.report(c.opts.Root, err)
		}
		return
	}
	if c.opts.OnSweep != nil {
		c.opts.OnSweep(rep)
	}
}

// Running reports whether Start was called and Close was not.
func (c *Collector) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Close stops the loop, cancels an in-flight sweep and waits for it.
func (c *Collector) Close() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.stopCh)
	c.ticker.Stop() // stop ticker before waiting
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}
