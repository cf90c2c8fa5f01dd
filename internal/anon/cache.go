package anon

import (
	"net/netip"

	"github.com/patrickmn/go-cache"
)

// ReplacementCache maps original public addresses to their replacements for
// one run. Entries are never overwritten or evicted.
type ReplacementCache struct {
	c *cache.Cache
}

func NewReplacementCache() *ReplacementCache {
	return &ReplacementCache{c: cache.New(cache.NoExpiration, 0)}
}

// Get returns the replacement for original, if one was recorded.
func (rc *ReplacementCache) Get(original netip.Addr) (netip.Addr, bool) {
	v, ok := rc.c.Get(original.String())
	if !ok {
		return netip.Addr{}, false
	}
	return v.(netip.Addr), true
}

// Add records original -> replacement. It returns false and keeps the
// existing entry when original is already mapped.
func (rc *ReplacementCache) Add(original, replacement netip.Addr) bool {
	return rc.c.Add(original.String(), replacement, cache.NoExpiration) == nil
}

// Len returns the number of distinct originals seen.
func (rc *ReplacementCache) Len() int { return rc.c.ItemCount() }
