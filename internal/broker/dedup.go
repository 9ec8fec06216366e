package broker

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dedup remembers recently seen message keys so redeliveries can be dropped
// as accepted no-ops instead of double-writing. The window is bounded both
// by entry count (LRU) and age (TTL).
type Dedup struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

// NewDedup builds a guard holding up to maxKeys keys for ttl each.
func NewDedup(maxKeys int, ttl time.Duration) *Dedup {
	c, _ := lru.New[string, time.Time](maxKeys)
	return &Dedup{cache: c, ttl: ttl}
}

// Seen reports whether key was observed within the TTL window, and records
// the observation either way.
func (d *Dedup) Seen(key string) bool {
	if addedAt, ok := d.cache.Get(key); ok {
		if time.Since(addedAt) < d.ttl {
			return true
		}
	}
	d.cache.Add(key, time.Now())
	return false
}
