package diskmemo

import (
	"time"

	"github.com/unkn0wn-root/diskmemo/gc"
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The memoizer calls them on hot paths.
type Hooks interface {
	// Served from the memory tier.
	MemoryHit(fingerprint string)
	// Served from a disk entry (memory was warmed).
	DiskHit(fingerprint, path string)
	// The producer ran and its value was published.
	Populated(fingerprint, path string, size int, took time.Duration)

	// An existing entry could not be used and will be repopulated.
	// reason ∈ {"read", "decode"}
	SelfHeal(path, reason string, err error)

	// Another owner held the entry's lock; this call waited.
	LockContended(lockPath string)
	// An abandoned lock marker was removed.
	StaleLockReclaimed(lockPath string, age time.Duration)

	// A background GC sweep finished, or failed on one entry.
	GCSwept(r gc.Report)
	GCError(path string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) MemoryHit(string)                             {}
func (NopHooks) DiskHit(string, string)                       {}
func (NopHooks) Populated(string, string, int, time.Duration) {}
func (NopHooks) SelfHeal(string, string, error)               {}
func (NopHooks) LockContended(string)                         {}
func (NopHooks) StaleLockReclaimed(string, time.Duration)     {}
func (NopHooks) GCSwept(gc.Report)                            {}
func (NopHooks) GCError(string, error)                        {}
