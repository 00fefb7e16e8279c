package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wudi/ember/compiler"
)

func newTestChunk() *compiler.Chunk {
	return compiler.NewChunk("<test>")
}

func TestCacheHitAndMissCounters(t *testing.T) {
	c := New(4, true)

	_, ok := c.Lookup("a.ember", "hash1", time.Now())
	require.False(t, ok)

	mtime := time.Now()
	c.Insert("a.ember", NewEntry("a.ember", "hash1", newTestChunk(), mtime))

	entry, ok := c.Lookup("a.ember", "hash1", mtime)
	require.True(t, ok)
	require.EqualValues(t, 1, entry.AccessCount())

	stats := c.Stats()
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 1, stats.Misses)
}

func TestCacheInvalidatesOnContentHashMismatch(t *testing.T) {
	c := New(4, true)
	mtime := time.Now()
	c.Insert("a.ember", NewEntry("a.ember", "hash1", newTestChunk(), mtime))

	_, ok := c.Lookup("a.ember", "hash2", mtime)
	require.False(t, ok)

	stats := c.Stats()
	require.EqualValues(t, 1, stats.Invalidations)
	require.EqualValues(t, 0, stats.Entries)
}

func TestCacheInvalidatesOnStaleMTime(t *testing.T) {
	c := New(4, true)
	mtime := time.Now()
	c.Insert("a.ember", NewEntry("a.ember", "hash1", newTestChunk(), mtime))

	_, ok := c.Lookup("a.ember", "hash1", mtime.Add(time.Minute))
	require.False(t, ok)
	require.EqualValues(t, 1, c.Stats().Invalidations)
}

func TestCacheEvictsAtCapacity(t *testing.T) {
	c := New(1, true)
	c.Insert("a.ember", NewEntry("a.ember", "hash1", newTestChunk(), time.Now()))
	c.Insert("b.ember", NewEntry("b.ember", "hash2", newTestChunk(), time.Now()))

	_, ok := c.Lookup("a.ember", "hash1", time.Now())
	require.False(t, ok)

	stats := c.Stats()
	require.EqualValues(t, 1, stats.Entries)
	require.GreaterOrEqual(t, stats.Evictions, uint64(1))
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c := New(4, false)
	c.Insert("a.ember", NewEntry("a.ember", "hash1", newTestChunk(), time.Now()))

	_, ok := c.Lookup("a.ember", "hash1", time.Now())
	require.False(t, ok)
}
