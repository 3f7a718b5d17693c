package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/diskmemo/internal/wire"
)

var (
	// ErrHeld reports a fresh marker owned by someone else. It is contention,
	// not a fault.
	ErrHeld = errors.New("lock: held")
	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("lock: coordinator closed")
)

const (
	DefaultStale      = 5 * time.Second
	DefaultRetryDelay = 50 * time.Millisecond
)

// State of a lock path at the moment it was inspected.
type State int

const (
	Free State = iota
	Held
	Stale
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Held:
		return "held"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Options struct {
	// Stale is the marker age after which a lock is considered abandoned.
	Stale time.Duration
	// RetryDelay is the fallback wake-up when no watch could be installed.
	RetryDelay time.Duration
	// Refresh is how often a held marker is touched. 0 means Stale/2,
	// negative disables refreshing.
	Refresh time.Duration
	// OnStaleReclaimed is called after an abandoned marker was removed.
	OnStaleReclaimed func(path string, age time.Duration)
}

// Coordinator owns the waiter registry and the shared watcher. It is safe for
// concurrent use; one Coordinator is normally shared by every memoizer in a
// process.
type Coordinator struct {
	stale      time.Duration
	retryDelay time.Duration
	refresh    time.Duration
	onReclaim  func(string, time.Duration)
	pid        int
	host       string

	mu       sync.Mutex
	waiters  map[string]*waiterSet
	dirs     map[string]int // watched directory -> number of waiter sets using it
	watcher  *fsnotify.Watcher
	watchErr error
	closed   bool
	wg       sync.WaitGroup
}

// waiterSet is the shared watch state for one lock path.
type waiterSet struct {
	path    string
	fns     []func()
	watched bool
	timer   *time.Timer // stale deadline or poll fallback
}

func New(opts Options) *Coordinator {
	stale := opts.Stale
	if stale <= 0 {
		stale = DefaultStale
	}
	retry := opts.RetryDelay
	if retry <= 0 {
		retry = DefaultRetryDelay
	}
	refresh := opts.Refresh
	if refresh == 0 {
		refresh = stale / 2
	}
	host, _ := os.Hostname()
	return &Coordinator{
		stale:      stale,
		retryDelay: retry,
		refresh:    refresh,
		onReclaim:  opts.OnStaleReclaimed,
		pid:        os.Getpid(),
		host:       host,
		waiters:    make(map[string]*waiterSet),
		dirs:       make(map[string]int),
	}
}

// StaleAfter returns the configured staleness threshold.
func (c *Coordinator) StaleAfter() time.Duration { return c.stale }

// State inspects the marker at path.
func (c *Coordinator) State(path string) (State, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Free, nil
		}
		return Free, err
	}
	if time.Since(fi.ModTime()) >= c.stale {
		return Stale, nil
	}
	return Held, nil
}

// Acquire takes the lock at path. It returns ErrHeld when a fresh marker
// exists, reclaims an abandoned one, and reports I/O faults as errors.
func (c *Coordinator) Acquire(path string) (*Lock, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		l, err := c.create(path)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}

		fi, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // released between create and stat
			}
			return nil, err
		}
		age := time.Since(fi.ModTime())
		if age < c.stale {
			return nil, ErrHeld
		}
		removed, retry, err := c.reclaim(path)
		if err != nil {
			return nil, err
		}
		if removed && c.onReclaim != nil {
			c.onReclaim(path, age)
		}
		if !retry {
			return nil, ErrHeld
		}
	}
	return nil, ErrHeld
}

func (c *Coordinator) create(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()
	_, werr := f.Write(wire.EncodeMarker(wire.Marker{
		Token:    token,
		PID:      c.pid,
		Host:     c.host,
		Acquired: time.Now(),
	}))
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	l := &Lock{path: path, token: token, stop: make(chan struct{}), done: make(chan struct{})}
	if c.refresh > 0 {
		go l.refreshLoop(c.refresh)
	} else {
		close(l.done)
	}
	return l, nil
}

// reclaim removes an abandoned marker. Reclaimers serialize on an exclusive
// guard file and re-check staleness while holding it, so a marker that was
// refreshed or replaced after the caller's stat is left alone. removed
// reports whether a marker was deleted; retry whether the path may now be
// free.
func (c *Coordinator) reclaim(path string) (removed, retry bool, err error) {
	guard := path + ".reclaim"
	g, err := os.OpenFile(guard, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return false, false, err
		}
		// a reclaimer that died with the guard must not wedge the path
		if fi, serr := os.Stat(guard); serr == nil && time.Since(fi.ModTime()) >= c.stale {
			_ = os.Remove(guard)
		}
		return false, false, nil
	}
	_ = g.Close()
	defer os.Remove(guard)

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, true, nil
		}
		return false, false, err
	}
	if time.Since(fi.ModTime()) < c.stale {
		return false, false, nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, false, err
	}
	return true, true, nil
}

// Release removes the marker at path regardless of owner. Missing markers are
// not an error.
func (c *Coordinator) Release(path string) error {
	err := os.Remove(filepath.Clean(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Marker reads and decodes the holder information stored at path.
func Marker(path string) (wire.Marker, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return wire.Marker{}, err
	}
	return wire.DecodeMarker(b)
}

// Lock is a held marker. Release it exactly once; extra calls are no-ops.
type Lock struct {
	path  string
	token string
	once  sync.Once
	stop  chan struct{}
	done  chan struct{}
}

func (l *Lock) Path() string  { return l.path }
func (l *Lock) Token() string { return l.token }

// Release stops refreshing and removes the marker if it is still ours.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		close(l.stop)
		<-l.done
		if !l.owned() {
			return
		}
		if rerr := os.Remove(l.path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			err = rerr
		}
	})
	return err
}

func (l *Lock) owned() bool {
	m, err := Marker(l.path)
	return err == nil && m.Token == l.token
}

func (l *Lock) refreshLoop(every time.Duration) {
	defer close(l.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			if !l.owned() {
				return
			}
			now := time.Now()
			_ = os.Chtimes(l.path, now, now)
		}
	}
}
