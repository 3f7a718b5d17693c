package lock

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitForRelease queues onReleased to run once the lock at path is released
// or turns stale. All waiters on a path share a single watch; the first one
// installs it. onReleased runs on an internal goroutine and must not block.
//
// Waking is a hint, not a grant: callers re-check state and try Acquire
// again.
func (c *Coordinator) WaitForRelease(path string, onReleased func()) {
	path = filepath.Clean(path)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		go onReleased()
		return
	}
	if ws, ok := c.waiters[path]; ok {
		ws.fns = append(ws.fns, onReleased)
		c.mu.Unlock()
		return
	}

	ws := &waiterSet{path: path, fns: []func(){onReleased}}
	c.waiters[path] = ws
	ws.watched = c.watchLocked(filepath.Dir(path))
	if !ws.watched {
		ws.timer = time.AfterFunc(c.retryDelay, func() { c.fire(path, ws) })
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// The marker may have gone before the watch attached.
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.fire(path, ws)
			return
		}
		c.mu.Lock()
		if c.waiters[path] == ws && ws.timer == nil {
			ws.timer = time.AfterFunc(c.retryDelay, func() { c.fire(path, ws) })
		}
		c.mu.Unlock()
		return
	}

	// Already stale: another caller may be mid-reclaim, so back off a little
	// rather than spinning on Acquire.
	until := c.stale - time.Since(fi.ModTime())
	if until < c.retryDelay {
		until = c.retryDelay
	}
	c.mu.Lock()
	if c.waiters[path] == ws && ws.timer == nil {
		ws.timer = time.AfterFunc(until, func() { c.fire(path, ws) })
	}
	c.mu.Unlock()
}

// Wait blocks until the lock at path is released, turns stale, or ctx is done.
func (c *Coordinator) Wait(ctx context.Context, path string) error {
	ch := make(chan struct{})
	c.WaitForRelease(path, func() { close(ch) })
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waiting reports how many callers are queued on path.
func (c *Coordinator) Waiting(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ws, ok := c.waiters[filepath.Clean(path)]; ok {
		return len(ws.fns)
	}
	return 0
}

// Close stops the watcher and wakes every pending waiter.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	w := c.watcher
	c.watcher = nil
	sets := make([]*waiterSet, 0, len(c.waiters))
	for _, ws := range c.waiters {
		sets = append(sets, ws)
	}
	c.mu.Unlock()

	for _, ws := range sets {
		c.fire(ws.path, ws)
	}
	var err error
	if w != nil {
		err = w.Close()
	}
	c.wg.Wait()
	return err
}

// watchLocked makes sure dir is watched, creating the shared watcher on
// first use. It reports false when no watch could be installed.
func (c *Coordinator) watchLocked(dir string) bool {
	if c.watcher == nil {
		if c.watchErr != nil {
			return false
		}
		w, err := fsnotify.NewWatcher()
		if err != nil {
			c.watchErr = err
			return false
		}
		c.watcher = w
		c.wg.Add(1)
		go c.loop(w)
	}
	if c.dirs[dir] == 0 {
		if err := c.watcher.Add(dir); err != nil {
			return false
		}
	}
	c.dirs[dir]++
	return true
}

func (c *Coordinator) unwatchLocked(dir string) {
	n := c.dirs[dir] - 1
	if n > 0 {
		c.dirs[dir] = n
		return
	}
	delete(c.dirs, dir)
	if c.watcher != nil {
		_ = c.watcher.Remove(dir)
	}
}

// fire runs every continuation queued on ws exactly once and tears the watch
// down. A ws that was already fired is ignored.
func (c *Coordinator) fire(path string, ws *waiterSet) {
	c.mu.Lock()
	if ws == nil {
		ws = c.waiters[path]
	}
	if ws == nil || c.waiters[path] != ws {
		c.mu.Unlock()
		return
	}
	delete(c.waiters, path)
	if ws.timer != nil {
		ws.timer.Stop()
	}
	if ws.watched {
		c.unwatchLocked(filepath.Dir(path))
	}
	fns := ws.fns
	ws.fns = nil
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *Coordinator) loop(w *fsnotify.Watcher) {
	defer c.wg.Done()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			// Chmod covers the holder's mtime refresh, which is not a release.
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Write) {
				c.fire(filepath.Clean(ev.Name), nil)
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
			// Events may have been lost; let everyone re-check.
			c.mu.Lock()
			sets := make([]*waiterSet, 0, len(c.waiters))
			for _, ws := range c.waiters {
				sets = append(sets, ws)
			}
			c.mu.Unlock()
			for _, ws := range sets {
				c.fire(ws.path, ws)
			}
		}
	}
}
