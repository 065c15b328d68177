// Package rates implements the rate resolution and portfolio valuation
// engine: a TTL cache of base-relative rates, a resolver that merges the
// fiat and crypto sources into one conversion capability, and a valuator
// that prices portfolios in the base currency.
package rates

import (
	"sync"
	"time"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
)

// Entry is one cached rate: one unit of Quote priced in the base
// currency, together with when and where it was fetched.
type Entry struct {
	Quote     currency.Code
	Rate      float64
	FetchedAt time.Time
	Source    string
}

// Fresh reports whether the entry is still within its TTL at the given
// instant. Freshness is binary: an entry fetched at T is fresh strictly
// before T+ttl and stale from T+ttl on.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// Cache stores the last successfully resolved rate per quote currency.
// All entries are relative to the single configured base currency, so the
// key space stays linear in the number of configured currencies. It is
// safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[currency.Code]Entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[currency.Code]Entry)}
}

// Get returns the cached entry for a quote currency, fresh or stale.
func (c *Cache) Get(quote currency.Code) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[quote]
	return e, ok
}

// Put records a successfully fetched rate, overwriting any prior entry
// for the same quote currency.
func (c *Cache) Put(quote currency.Code, rate float64, source string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[quote] = Entry{Quote: quote, Rate: rate, FetchedAt: now, Source: source}
}

// Restore replaces the cache contents with previously persisted entries,
// keeping their original fetch timestamps. Entries that were stale when
// persisted stay stale.
func (c *Cache) Restore(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[currency.Code]Entry, len(entries))
	for _, e := range entries {
		c.entries[e.Quote] = e
	}
}

// Entries returns a snapshot of all cached entries in unspecified order.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every entry. This is the only way entries are ever deleted.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[currency.Code]Entry)
}
