package gc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEntry(t *testing.T, root, rel string, accessedAgo time.Duration) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("payload"), 0o644))
	then := time.Now().Add(-accessedAgo)
	require.NoError(t, os.Chtimes(p, then, then))
	return p
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestSweepRemovesOnlyOldCacheFiles(t *testing.T) {
	root := t.TempDir()
	old := writeEntry(t, root, "aa/bb/cc/old.cache", 2*time.Hour)
	fresh := writeEntry(t, root, "aa/bb/dd/fresh.cache", time.Minute)
	tmp := writeEntry(t, root, "aa/bb/cc/old.cache.tmp", 2*time.Hour)
	lock := writeEntry(t, root, ".locks/aa/bb/cc/old.lock", 2*time.Hour)
	other := writeEntry(t, root, "notes.txt", 2*time.Hour)

	c := New(Options{Root: root, LastAccess: time.Hour})
	rep, err := c.Sweep(context.Background())
	require.NoError(t, err)

	assert.False(t, exists(old))
	assert.True(t, exists(fresh))
	assert.True(t, exists(tmp))
	assert.True(t, exists(lock))
	assert.True(t, exists(other))

	assert.Equal(t, 2, rep.Scanned)
	assert.Equal(t, 1, rep.Removed)
	assert.Equal(t, 0, rep.Failed)
	assert.EqualValues(t, len("payload"), rep.BytesFreed)
}

func TestSweepManyEntries(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 250; i++ {
		writeEntry(t, root, filepath.Join("x", "y", "z", fmt.Sprintf("%03d.cache", i)), 2*time.Hour)
	}
	c := New(Options{Root: root, LastAccess: time.Hour, Concurrency: 8})
	rep, err := c.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, rep.Removed)

	left, err := filepath.Glob(filepath.Join(root, "x", "y", "z", "*.cache"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSweepMissingRoot(t *testing.T) {
	c := New(Options{Root: filepath.Join(t.TempDir(), "nope")})
	rep, err := c.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Scanned)
}

func TestSweepUsesInjectedClock(t *testing.T) {
	root := t.TempDir()
	p := writeEntry(t, root, "a.cache", time.Minute)

	c := New(Options{Root: root, LastAccess: time.Hour, Now: func() time.Time {
		return time.Now().Add(2 * time.Hour)
	}})
	rep, err := c.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Removed)
	assert.False(t, exists(p))
}

func TestSweepCanceled(t *testing.T) {
	root := t.TempDir()
	writeEntry(t, root, "a.cache", 2*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Root: root}).Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartSweepsImmediatelyAndOnInterval(t *testing.T) {
	root := t.TempDir()
	var (
		mu      sync.Mutex
		reports []Report
	)
	c := New(Options{
		Root:       root,
		LastAccess: time.Hour,
		Interval:   50 * time.Millisecond,
		OnSweep: func(r Report) {
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
		},
	})
	writeEntry(t, root, "a.cache", 2*time.Hour)

	c.Start()
	c.Start() // idempotent
	require.True(t, c.Running())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) >= 3
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.Running())

	mu.Lock()
	assert.Equal(t, 1, reports[0].Removed)
	mu.Unlock()
}

func TestErrorsDoNotAbortSweep(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	writeEntry(t, locked, "a.cache", 2*time.Hour)
	ok := writeEntry(t, root, "open/b.cache", 2*time.Hour)
	require.NoError(t, os.Chmod(locked, 0o555))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var errs atomic.Int32
	c := New(Options{Root: root, LastAccess: time.Hour, OnError: func(string, error) { errs.Add(1) }})
	rep, err := c.Sweep(context.Background())
	require.NoError(t, err)

	assert.False(t, exists(ok))
	assert.Equal(t, 1, rep.Removed)
	assert.Equal(t, 1, rep.Failed)
	assert.EqualValues(t, 1, errs.Load())
}
