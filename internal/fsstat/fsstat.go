// Package fsstat reports the file times the cache relies on: change time
// (entry creation, used for max-age expiry) and access time (used by GC).
// os.FileInfo only exposes ModTime, so platform specific code fills the rest.
package fsstat

import (
	"os"
	"time"
)

// Info is a stat snapshot of one file.
type Info struct {
	os.FileInfo
	Changed  time.Time // ctime; falls back to ModTime where unavailable
	Accessed time.Time // atime; falls back to ModTime where unavailable
}

// Stat stats path and fills in change and access times.
func Stat(path string) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	return fromFileInfo(path, fi), nil
}

// FromFileInfo completes an existing FileInfo (e.g. from a directory walk).
func FromFileInfo(path string, fi os.FileInfo) Info {
	return fromFileInfo(path, fi)
}

// SameEntry reports whether a and b describe the same published file.
// A rename publish always produces a new inode, so identity plus mtime is
// enough to tell two publications apart.
func SameEntry(a, b Info) bool {
	if a.FileInfo == nil || b.FileInfo == nil {
		return a.FileInfo == nil && b.FileInfo == nil
	}
	return os.SameFile(a.FileInfo, b.FileInfo) && a.ModTime().Equal(b.ModTime()) && a.Size() == b.Size()
}
