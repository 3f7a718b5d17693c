package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ab", "cd", "ef", "0123456789abcdef0123456789.lock")
}

func writeMarker(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("foreign"), 0o644))
	then := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, then, then))
}

func TestAcquireIsExclusive(t *testing.T) {
	path := lockPath(t)
	coords := []*Coordinator{New(Options{}), New(Options{})}
	for _, c := range coords {
		defer c.Close()
	}

	var (
		wg     sync.WaitGroup
		won    atomic.Int32
		held   atomic.Int32
		winner *Lock
		mu     sync.Mutex
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(c *Coordinator) {
			defer wg.Done()
			l, err := c.Acquire(path)
			switch {
			case err == nil:
				won.Add(1)
				mu.Lock()
				winner = l
				mu.Unlock()
			case errors.Is(err, ErrHeld):
				held.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(coords[i%2])
	}
	wg.Wait()

	require.EqualValues(t, 1, won.Load())
	assert.EqualValues(t, 63, held.Load())

	st, err := coords[0].State(path)
	require.NoError(t, err)
	assert.Equal(t, Held, st)

	m, err := Marker(path)
	require.NoError(t, err)
	assert.Equal(t, winner.Token(), m.Token)
	assert.Equal(t, os.Getpid(), m.PID)

	require.NoError(t, winner.Release())
	st, err = coords[1].State(path)
	require.NoError(t, err)
	assert.Equal(t, Free, st)
}

func TestReleaseIsIdempotent(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	path := lockPath(t)

	l, err := c.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
	require.NoError(t, c.Release(path))
	require.NoError(t, c.Release(path))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReleaseKeepsForeignMarker(t *testing.T) {
	a, b := New(Options{}), New(Options{})
	defer a.Close()
	defer b.Close()
	path := lockPath(t)

	la, err := a.Acquire(path)
	require.NoError(t, err)
	// someone force-unlocks and a new owner takes over
	require.NoError(t, a.Release(path))
	lb, err := b.Acquire(path)
	require.NoError(t, err)
	defer lb.Release()

	require.NoError(t, la.Release())
	st, err := b.State(path)
	require.NoError(t, err)
	assert.Equal(t, Held, st, "old owner must not remove the new owner's marker")
}

func TestStaleMarkerIsReclaimed(t *testing.T) {
	var reclaimed atomic.Int32
	c := New(Options{
		Stale:            time.Second,
		OnStaleReclaimed: func(string, time.Duration) { reclaimed.Add(1) },
	})
	defer c.Close()
	path := lockPath(t)
	writeMarker(t, path, time.Hour)

	st, err := c.State(path)
	require.NoError(t, err)
	require.Equal(t, Stale, st)

	l, err := c.Acquire(path)
	require.NoError(t, err)
	defer l.Release()
	assert.EqualValues(t, 1, reclaimed.Load())

	m, err := Marker(path)
	require.NoError(t, err)
	assert.Equal(t, l.Token(), m.Token)

	// nothing left behind from the reclaim
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStaleReclaimRaceHasOneWinner(t *testing.T) {
	path := lockPath(t)
	writeMarker(t, path, time.Hour)

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := New(Options{Stale: time.Second, Refresh: -1})
			defer c.Close()
			if _, err := c.Acquire(path); err == nil {
				won.Add(1)
			} else if !errors.Is(err, ErrHeld) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, won.Load())
}

func TestFreshForeignMarkerIsHeld(t *testing.T) {
	c := New(Options{Stale: time.Minute})
	defer c.Close()
	path := lockPath(t)
	writeMarker(t, path, 0)

	_, err := c.Acquire(path)
	require.ErrorIs(t, err, ErrHeld)
}

func TestHeldLockIsRefreshed(t *testing.T) {
	c := New(Options{Stale: 300 * time.Millisecond})
	defer c.Close()
	path := lockPath(t)

	l, err := c.Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	time.Sleep(900 * time.Millisecond)
	st, err := c.State(path)
	require.NoError(t, err)
	assert.Equal(t, Held, st)

	_, err = New(Options{Stale: 300 * time.Millisecond}).Acquire(path)
	assert.ErrorIs(t, err, ErrHeld)
}

func TestAcquireAfterClose(t *testing.T) {
	c := New(Options{})
	require.NoError(t, c.Close())
	_, err := c.Acquire(lockPath(t))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "free", Free.String())
	assert.Equal(t, "held", Held.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestAcquireFaultIsNotContention(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	// parent "directory" is a regular file
	_, err := c.Acquire(filepath.Join(blocker, "x.lock"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrHeld))
}

func TestWaitContextCancel(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	path := lockPath(t)
	l, err := c.Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx, path), context.DeadlineExceeded)
}
