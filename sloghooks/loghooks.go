// Package sloghooks implements diskmemo.Hooks on top of log/slog.
// Frequent events can be sampled, and fingerprints are redacted because they
// are usually built from user input (URLs, query strings, ids).
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/diskmemo"
	"github.com/unkn0wn-root/diskmemo/gc"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery      uint64
	SelfHealEvery uint64
	ContendEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr      atomic.Uint64
	selfHealCtr atomic.Uint64
	contendCtr  atomic.Uint64
}

var _ diskmemo.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) MemoryHit(fp string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("diskmemo.memory_hit", "key", h.redact(fp))
}

func (h *Hooks) DiskHit(fp, path string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("diskmemo.disk_hit", "key", h.redact(fp), "path", path)
}

func (h *Hooks) Populated(fp, path string, size int, took time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("diskmemo.populated",
		"key", h.redact(fp),
		"path", path,
		"size", size,
		"took", took)
}

func (h *Hooks) SelfHeal(path, reason string, err error) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Warn("diskmemo.self_heal",
		"path", path,
		"reason", reason,
		"err", err)
}

func (h *Hooks) LockContended(lockPath string) {
	if h.l == nil || !sample(h.opts.ContendEvery, &h.contendCtr) {
		return
	}
	h.l.Debug("diskmemo.lock_contended", "lock", lockPath)
}

func (h *Hooks) StaleLockReclaimed(lockPath string, age time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("diskmemo.stale_lock_reclaimed",
		"lock", lockPath,
		"age", age)
}

func (h *Hooks) GCSwept(r gc.Report) {
	if h.l == nil {
		return
	}
	h.l.Info("diskmemo.gc_swept",
		"scanned", r.Scanned,
		"removed", r.Removed,
		"failed", r.Failed,
		"bytes_freed", r.BytesFreed,
		"took", r.Elapsed)
}

func (h *Hooks) GCError(path string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("diskmemo.gc_error",
		"path", path,
		"err", err)
}
