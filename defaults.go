package diskmemo

import (
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultDirName        = "disk-memoizer"
	DefaultLockStale      = 5 * time.Second
	DefaultLockRetryDelay = 50 * time.Millisecond
	DefaultGCInterval     = 5 * time.Minute
	DefaultGCLastAccess   = time.Hour
	lockDirName           = ".locks"
)

// DefaultCacheDir is where entries live when Options.CacheDir is empty.
func DefaultCacheDir() string {
	return filepath.Join(os.TempDir(), DefaultDirName)
}

// DefaultLockDir is where lock markers live when Options.LockDir is empty.
func DefaultLockDir(cacheDir string) string {
	return filepath.Join(cacheDir, lockDirName)
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
