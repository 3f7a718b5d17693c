package diskmemo

import (
	"context"
	"time"

	"github.com/unkn0wn-root/diskmemo/codec"
	"github.com/unkn0wn-root/diskmemo/lock"
	"github.com/unkn0wn-root/diskmemo/provider"
)

// Producer computes the value for args. It is called at most once at a time
// per fingerprint, and only by the caller that holds the entry's lock.
type Producer[A, V any] func(ctx context.Context, args A) (V, error)

// Result is what DoAsync delivers.
type Result[V any] struct {
	Value V
	Err   error
}

// Memo is a memoized producer backed by memory and disk.
// A is the argument type, V the value type.
type Memo[A, V any] interface {
	// Do returns the cached value for args, producing and publishing it if
	// needed. ctx only bounds this caller's wait; shared work continues for
	// other callers.
	Do(ctx context.Context, args A) (V, error)
	// DoAsync is Do delivered on a channel. Exactly one Result is sent.
	DoAsync(ctx context.Context, args A) <-chan Result[V]

	// Path returns the on-disk location used for args.
	Path(args A) string

	// SetForceFlush makes every call bypass cached reads and repopulate.
	// Entries are not deleted.
	SetForceFlush(on bool)
	ForceFlush() bool

	// StartGC starts the background collector if it is not running.
	StartGC()
	Close(ctx context.Context) error
}

type GCOptions struct {
	Enabled     bool
	Interval    time.Duration // 0 => 5m
	LastAccess  time.Duration // 0 => 1h
	Concurrency int           // 0 => 100
}

// Options tune a Memo. The zero value works for []byte and string values;
// every other V needs a Codec.
type Options[A, V any] struct {
	MemoryItems int                  // 0 => no memory tier
	MemoryTTL   time.Duration        // 0 => MaxAge (0 => never age out)
	Memory      provider.Provider[V] // overrides MemoryItems/MemoryTTL

	CacheDir string        // "" => $TMPDIR/disk-memoizer
	LockDir  string        // "" => <CacheDir>/.locks
	MaxAge   time.Duration // 0 => disk entries never expire

	LockStale      time.Duration     // 0 => 5s
	LockRetryDelay time.Duration     // 0 => 50ms
	Locks          *lock.Coordinator // nil => private coordinator

	ForceFlush bool

	Codec    codec.Codec[V]  // nil => passthrough for []byte/string
	Identity IdentityFunc[A] // nil => DefaultIdentity

	GC GCOptions

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

func New[A, V any](produce Producer[A, V], opts Options[A, V]) (Memo[A, V], error) {
	return newMemo(produce, opts)
}
