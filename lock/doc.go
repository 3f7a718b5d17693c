// Package lock coordinates producers of the same cache entry across
// goroutines and OS processes using marker files.
//
// A lock is a file created with O_CREATE|O_EXCL. Its state is a pure function
// of the file's existence and mtime:
//
//	missing                    Free
//	mtime within Stale         Held
//	mtime older than Stale     Stale (abandoned, may be reclaimed)
//
// Abandoned markers are removed by whichever acquirer first takes the
// "<lock>.reclaim" guard and still finds the marker stale.
//
// Holders touch the mtime every Stale/2 so a slow producer is never mistaken
// for a dead one. Waiters share one filesystem watch per lock path and are
// woken when the marker is removed, renamed or rewritten, or when it would
// turn stale. Where a watch cannot be installed they retry after a fixed
// delay.
package lock
