// Package cache implements Ember's process-scoped bytecode cache
//: a fingerprint-to-compiled-chunk map with LRU
// eviction, content-hash/mtime staleness checks, and an optional
// hot-reload watcher. Eviction is delegated to
// hashicorp/golang-lru/v2 rather than a hand-rolled recency list, so
// the fixed-capacity LRU policy is a real, tested implementation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/ember/compiler"
)

// HashSource fingerprints source text: a plain SHA-256 over the
// bytes, hex-encoded.
func HashSource(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// Entry is one cache slot:
// script path, source fingerprint, the compiled chunk, and access
// bookkeeping. AccessCount/LastAccess are updated with atomics so
// concurrent lookups never race each other.
type Entry struct {
	Path          string
	ContentHash   string
	Chunk         *compiler.Chunk
	Size          int
	CompiledAt    time.Time
	SourceModTime time.Time
	Generation    string

	accessCount atomic.Int64
	lastAccess  atomic.Int64 // unix nanoseconds
}

// NewEntry builds an entry ready for Cache.Insert. Generation is a
// fresh uuid stamp distinguishing this compile from any prior one at
// the same path.
func NewEntry(path, contentHash string, chunk *compiler.Chunk, sourceModTime time.Time) *Entry {
	return &Entry{
		Path:          path,
		ContentHash:   contentHash,
		Chunk:         chunk,
		Size:          len(chunk.Code),
		CompiledAt:    time.Now(),
		SourceModTime: sourceModTime,
		Generation:    uuid.NewString(),
	}
}

// AccessCount returns the number of lookups that have hit this entry.
func (e *Entry) AccessCount() int64 { return e.accessCount.Load() }

// LastAccess returns the time of the most recent hit, or the zero
// time if the entry has never been looked up.
func (e *Entry) LastAccess() time.Time {
	ns := e.lastAccess.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (e *Entry) touch() {
	e.accessCount.Add(1)
	e.lastAccess.Store(time.Now().UnixNano())
}
