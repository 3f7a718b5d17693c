// Package diskmemo memoizes an expensive producer into a two-tier cache: a
// bounded in-memory LRU in front of a sharded on-disk store that several
// goroutines and OS processes can share.
//
// Components:
//   - provider.Provider[V]: memory tier (LRU by default, Null when disabled).
//   - codec.Codec[V]: turns values into the bytes stored on disk.
//   - lock.Coordinator: marker-file locks so only one caller, in any process,
//     runs the producer for a key at a time.
//   - gc.Collector: removes entries nobody has read for a while.
//
// Layout:
//
//	<CacheDir>/<2hex>/<2hex>/<2hex>/<26hex>.cache   entries (md5 of the fingerprint)
//	<CacheDir>/.locks/<same>.lock                    lock markers
//	<entry>.tmp                                      in-flight writes
//
// Entries are published by writing <entry>.tmp and renaming it into place,
// so a reader sees either the old entry, the new one, or none. An entry that
// fails to decode is treated as missing and repopulated under the lock.
//
// Usage:
//
//	m, _ := diskmemo.New(fetch, diskmemo.Options[string, Page]{
//	    MemoryItems: 1000,
//	    MaxAge:      time.Hour,
//	    Codec:       codec.JSON[Page]{},
//	})
//	defer m.Close(ctx)
//	page, err := m.Do(ctx, "https://example.com")
package diskmemo
