package diskmemo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/diskmemo/codec"
	"github.com/unkn0wn-root/diskmemo/gc"
	"github.com/unkn0wn-root/diskmemo/internal/disk"
	"github.com/unkn0wn-root/diskmemo/internal/fsstat"
	"github.com/unkn0wn-root/diskmemo/internal/util"
	"github.com/unkn0wn-root/diskmemo/lock"
	"github.com/unkn0wn-root/diskmemo/provider"
)

type memo[A, V any] struct {
	produce  Producer[A, V]
	codec    codec.Codec[V]
	identity IdentityFunc[A]
	mem      provider.Provider[V]
	log      Logger
	hooks    Hooks

	root     string
	lockRoot string
	maxAge   time.Duration

	locks    *lock.Coordinator
	ownLocks bool
	gc       *gc.Collector

	flush  atomic.Bool
	flight singleflight.Group

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Memo[string, []byte] = (*memo[string, []byte])(nil)

func newMemo[A, V any](produce Producer[A, V], opts Options[A, V]) (*memo[A, V], error) {
	if produce == nil {
		return nil, ErrNilProducer
	}

	m := &memo[A, V]{
		produce:  produce,
		identity: opts.Identity,
		maxAge:   opts.MaxAge,
	}
	if m.identity == nil {
		m.identity = DefaultIdentity[A]
	}

	m.codec = opts.Codec
	if m.codec == nil {
		c, ok := codec.Identity[V]()
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrNoCodec, *new(V))
		}
		m.codec = c
	}

	m.log = coalesce[Logger](opts.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	m.root = filepath.Clean(coalesce(opts.CacheDir, DefaultCacheDir()))
	m.lockRoot = filepath.Clean(coalesce(opts.LockDir, DefaultLockDir(m.root)))

	if opts.Memory != nil {
		m.mem = opts.Memory
	} else {
		// memory never outlives the disk entry it mirrors
		m.mem = provider.New[V](opts.MemoryItems, coalesce(opts.MemoryTTL, opts.MaxAge))
	}

	if opts.Locks != nil {
		m.locks = opts.Locks
	} else {
		m.locks = lock.New(lock.Options{
			Stale:      coalesce(opts.LockStale, DefaultLockStale),
			RetryDelay: coalesce(opts.LockRetryDelay, DefaultLockRetryDelay),
			OnStaleReclaimed: func(path string, age time.Duration) {
				m.log.Warn("reclaimed stale lock", Fields{"lock": path, "age": age.String()})
				m.hooks.StaleLockReclaimed(path, age)
			},
		})
		m.ownLocks = true
	}

	m.gc = gc.New(gc.Options{
		Root:        m.root,
		LastAccess:  coalesce(opts.GC.LastAccess, DefaultGCLastAccess),
		Interval:    coalesce(opts.GC.Interval, DefaultGCInterval),
		Concurrency: opts.GC.Concurrency,
		OnError: func(path string, err error) {
			m.log.Warn("gc failed on entry", Fields{"path": path, "err": err})
			m.hooks.GCError(path, err)
		},
		OnSweep: func(r gc.Report) {
			m.log.Debug("gc sweep", Fields{
				"scanned": r.Scanned,
				"removed": r.Removed,
				"failed":  r.Failed,
				"freed":   r.BytesFreed,
				"took":    r.Elapsed.String(),
			})
			m.hooks.GCSwept(r)
		},
	})

	m.flush.Store(opts.ForceFlush)
	if opts.GC.Enabled {
		m.gc.Start()
	}
	return m, nil
}

func (m *memo[A, V]) Path(args A) string {
	return util.CachePath(m.identity(args), m.root)
}

func (m *memo[A, V]) SetForceFlush(on bool) { m.flush.Store(on) }
func (m *memo[A, V]) ForceFlush() bool      { return m.flush.Load() }

func (m *memo[A, V]) StartGC() {
	if m.closed.Load() {
		return
	}
	m.gc.Start()
}

func (m *memo[A, V]) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		_ = m.gc.Close()
		var errs []error
		if m.ownLocks {
			errs = append(errs, m.locks.Close())
		}
		errs = append(errs, m.mem.Close(ctx))
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

func (m *memo[A, V]) Do(ctx context.Context, args A) (V, error) {
	var zero V
	if m.closed.Load() {
		return zero, ErrClosed
	}

	fp := m.identity(args)
	if !m.flush.Load() {
		if v, ok := m.mem.Get(fp); ok {
			m.hooks.MemoryHit(fp)
			return v, nil
		}
	}

	// Callers for one fingerprint share a single resolution. It runs
	// detached from any one caller's ctx so an impatient caller cannot
	// fail the others.
	ch := m.flight.DoChan(fp, func() (any, error) {
		return m.resolve(context.WithoutCancel(ctx), fp, args)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		v, _ := r.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (m *memo[A, V]) DoAsync(ctx context.Context, args A) <-chan Result[V] {
	out := make(chan Result[V], 1)
	go func() {
		v, err := m.Do(ctx, args)
		out <- Result[V]{Value: v, Err: err}
	}()
	return out
}

// resolve runs the disk half of a lookup for one fingerprint:
//
//	stat -> fresh entry -> read+decode -> warm memory
//	     -> missing/expired/flushed/corrupt -> acquire lock -> produce -> publish
//	     -> lock held elsewhere -> wait for release -> stat again
func (m *memo[A, V]) resolve(ctx context.Context, fp string, args A) (V, error) {
	var zero V
	path := util.CachePath(fp, m.root)
	lockPath := util.LockPath(fp, m.lockRoot)

	force := m.flush.Load()
	seen := m.stat(path)
	for {
		if m.usable(seen) && !force {
			v, err := m.read(path)
			if err == nil {
				m.mem.Set(fp, v)
				m.hooks.DiskHit(fp, path)
				return v, nil
			}
			m.selfHeal(path, err)
		}

		l, err := m.locks.Acquire(lockPath)
		if errors.Is(err, lock.ErrHeld) {
			m.hooks.LockContended(lockPath)
			m.log.Debug("waiting for lock", Fields{"lock": lockPath})
			if err := m.locks.Wait(ctx, lockPath); err != nil {
				return zero, err
			}
			cur := m.stat(path)
			if !fsstat.SameEntry(seen, cur) {
				// whoever held the lock published a new entry; that is
				// the refresh a forced call was asking for
				force = false
			}
			seen = cur
			continue
		}
		if err != nil {
			if errors.Is(err, lock.ErrClosed) {
				return zero, ErrClosed
			}
			return zero, &LockError{Path: lockPath, Err: err}
		}
		return m.populate(ctx, l, fp, path, args, seen)
	}
}

// populate runs with the entry's lock held and always releases it.
func (m *memo[A, V]) populate(ctx context.Context, l *lock.Lock, fp, path string, args A, seen fsstat.Info) (V, error) {
	defer func() {
		if err := l.Release(); err != nil {
			m.log.Warn("lock release failed", Fields{"lock": l.Path(), "err": err})
		}
	}()

	// Someone may have published between our stat and the acquire.
	if cur := m.stat(path); !fsstat.SameEntry(seen, cur) && m.usable(cur) {
		if v, err := m.read(path); err == nil {
			m.mem.Set(fp, v)
			m.hooks.DiskHit(fp, path)
			return v, nil
		}
	}

	var zero V
	start := time.Now()
	v, err := m.produce(ctx, args)
	if err != nil {
		return zero, err
	}

	b, err := m.codec.Encode(v)
	if err != nil {
		return zero, &SerializationError{Fingerprint: fp, Err: err}
	}
	// Memory holds what a disk reader would get back.
	dv, err := m.codec.Decode(b)
	if err != nil {
		return zero, &SerializationError{Fingerprint: fp, Err: err}
	}

	if err := disk.Publish(path, b); err != nil {
		fe := &FilesystemError{Op: "publish", Path: path, Err: err}
		var pe *disk.PublishError
		if errors.As(err, &pe) {
			fe.Op, fe.Path = string(pe.Op), pe.Path
		}
		m.log.Error("publish failed", Fields{"path": fe.Path, "op": fe.Op, "err": fe.Err})
		return zero, fe
	}

	m.mem.Set(fp, dv)
	took := time.Since(start)
	m.hooks.Populated(fp, path, len(b), took)
	m.log.Debug("populated", Fields{"path": path, "size": len(b), "took": took.String()})
	return dv, nil
}

func (m *memo[A, V]) read(path string) (V, error) {
	var zero V
	b, err := disk.Read(path)
	if err != nil {
		return zero, err
	}
	v, err := m.codec.Decode(b)
	if err != nil {
		return zero, &DeserializationError{Path: path, Err: err}
	}
	return v, nil
}

func (m *memo[A, V]) selfHeal(path string, err error) {
	reason := "read"
	var de *DeserializationError
	if errors.As(err, &de) {
		reason = "decode"
	}
	m.log.Warn("unusable cache entry, repopulating", Fields{"path": path, "reason": reason, "err": err})
	m.hooks.SelfHeal(path, reason, err)
}

// stat treats every failure as "absent".
func (m *memo[A, V]) stat(path string) fsstat.Info {
	info, err := fsstat.Stat(path)
	if err != nil {
		return fsstat.Info{}
	}
	return info
}

func (m *memo[A, V]) usable(info fsstat.Info) bool {
	return info.FileInfo != nil && !Expired(m.maxAge, info.Changed, time.Now())
}

// Expired reports whether an entry created at created is past maxAge at now.
// maxAge <= 0 never expires.
func Expired(maxAge time.Duration, created, now time.Time) bool {
	return maxAge > 0 && now.Sub(created) > maxAge
}
