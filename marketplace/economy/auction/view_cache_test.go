package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewCacheHit(t *testing.T) {
	vc, err := newViewCache(16, time.Minute)
	require.NoError(t, err)

	view := &View{Code: "Q7PZ", Status: "live"}
	vc.add("Q7PZ", view)

	got, ok := vc.get("Q7PZ")
	require.True(t, ok)
	assert.Same(t, view, got)
}

func TestViewCacheMiss(t *testing.T) {
	vc, err := newViewCache(16, time.Minute)
	require.NoError(t, err)

	_, ok := vc.get("NOPE")
	assert.False(t, ok)
}

func TestViewCacheTTLExpiry(t *testing.T) {
	vc, err := newViewCache(16, 10*time.Millisecond)
	require.NoError(t, err)

	vc.add("Q7PZ", &View{Code: "Q7PZ"})
	time.Sleep(20 * time.Millisecond)

	_, ok := vc.get("Q7PZ")
	assert.False(t, ok, "entries past their ttl read as misses")
	assert.False(t, vc.cache.Contains("Q7PZ"), "stale entries are evicted on read")
}

func TestViewCacheInvalidate(t *testing.T) {
	vc, err := newViewCache(16, time.Minute)
	require.NoError(t, err)

	vc.add("Q7PZ", &View{Code: "Q7PZ"})
	vc.invalidate("Q7PZ")

	_, ok := vc.get("Q7PZ")
	assert.False(t, ok)
}

func TestViewCacheEvictsAtCapacity(t *testing.T) {
	vc, err := newViewCache(2, time.Minute)
	require.NoError(t, err)

	vc.add("AAAA", &View{Code: "AAAA"})
	vc.add("BBBB", &View{Code: "BBBB"})
	vc.add("CCCC", &View{Code: "CCCC"})

	_, ok := vc.get("AAAA")
	assert.False(t, ok, "oldest entry leaves first")
	_, ok = vc.get("CCCC")
	assert.True(t, ok)
}
