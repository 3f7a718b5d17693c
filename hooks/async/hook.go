// Package asynchook moves hook delivery off the memoizer's hot path.
// Events are queued to a fixed pool of workers and dropped when the queue is
// full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	m, _ := diskmemo.New(fetch, diskmemo.Options[string, []byte]{
//	    MemoryItems: 500,
//	    Hooks:       hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/diskmemo"
	"github.com/unkn0wn-root/diskmemo/gc"
)

type Hooks struct {
	inner   diskmemo.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ diskmemo.Hooks = (*Hooks)(nil)

func New(inner diskmemo.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue after Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) MemoryHit(fp string)           { h.try(func() { h.inner.MemoryHit(fp) }) }
func (h *Hooks) DiskHit(fp, path string)       { h.try(func() { h.inner.DiskHit(fp, path) }) }
func (h *Hooks) LockContended(lockPath string) { h.try(func() { h.inner.LockContended(lockPath) }) }
func (h *Hooks) GCSwept(r gc.Report)           { h.try(func() { h.inner.GCSwept(r) }) }
func (h *Hooks) GCError(path string, err error) {
	h.try(func() { h.inner.GCError(path, err) })
}
func (h *Hooks) Populated(fp, path string, size int, took time.Duration) {
	h.try(func() { h.inner.Populated(fp, path, size, took) })
}
func (h *Hooks) SelfHeal(path, reason string, err error) {
	h.try(func() { h.inner.SelfHeal(path, reason, err) })
}
func (h *Hooks) StaleLockReclaimed(lockPath string, age time.Duration) {
	h.try(func() { h.inner.StaleLockReclaimed(lockPath, age) })
}
