package util

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
)

const (
	CacheSuffix = ".cache"
	LockSuffix  = ".lock"
	TempSuffix  = ".tmp"
)

// Shard hashes a fingerprint and splits the hex digest into three two-character
// directory levels plus the remaining stem: "c149909e28..." -> ["c1","49","90","9e28..."].
func Shard(fingerprint string) [4]string {
	sum := md5.Sum([]byte(fingerprint))
	h := hex.EncodeToString(sum[:])
	return [4]string{h[0:2], h[2:4], h[4:6], h[6:]}
}

// CachePath returns the on-disk location of the entry for fingerprint under root.
// It is a pure function of its inputs.
func CachePath(fingerprint, root string) string {
	return shardedPath(fingerprint, root, CacheSuffix)
}

// LockPath returns the lock marker location for fingerprint under lockRoot.
// Markers share the entry's hash so both trees can be correlated by eye.
func LockPath(fingerprint, lockRoot string) string {
	return shardedPath(fingerprint, lockRoot, LockSuffix)
}

// TempPath is the sibling used while an entry is being written.
func TempPath(cachePath string) string { return cachePath + TempSuffix }

func shardedPath(fingerprint, root, suffix string) string {
	s := Shard(fingerprint)
	return filepath.Join(root, s[0], s[1], s[2], s[3]+suffix)
}
