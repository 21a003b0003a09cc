package auction

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type cachedView struct {
	view      *View
	fetchedAt time.Time
}

// viewCache keeps recently served auction views for a few seconds. Bids and
// closes invalidate their auction's entry, so a hit is at most ttl stale and
// never stale across a state change seen by this process.
type viewCache struct {
	cache *lru.Cache
	ttl   time.Duration
}

func newViewCache(size int, ttl time.Duration) (*viewCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &viewCache{cache: cache, ttl: ttl}, nil
}

func (vc *viewCache) get(code string) (*View, bool) {
	if entry, ok := vc.cache.Get(code); ok {
		cached := entry.(cachedView)
		if time.Since(cached.fetchedAt) < vc.ttl {
			return cached.view, true
		}
		vc.cache.Remove(code)
	}
	return nil, false
}

func (vc *viewCache) add(code string, view *View) {
	vc.cache.Add(code, cachedView{view: view, fetchedAt: time.Now()})
}

func (vc *viewCache) invalidate(code string) {
	vc.cache.Remove(code)
}
