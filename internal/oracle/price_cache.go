package oracle

import (
	"context"
	"sync"
	"time"

	"swapFeed/internal/model"
	"swapFeed/internal/validate"
)

// FetchFunc loads a fresh quote for a token address.
type FetchFunc func(ctx context.Context, tokenAddress string) (*model.PriceQuote, error)

type cacheEntry struct {
	quote     *model.PriceQuote
	fetchedAt time.Time
}

// PriceCache serves current prices with a bounded TTL. The clock is
// injected so TTL behavior is testable with a fake. Concurrent refreshes
// of the same key may race; the loser's write is overwritten, which is
// acceptable for monotonically-refreshed price approximations. The mutex
// only keeps map access memory-safe.
type PriceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	fetch   FetchFunc
	entries map[string]cacheEntry
}

// NewPriceCache builds a cache with the given TTL, clock and fetch
// function. A nil clock defaults to time.Now.
func NewPriceCache(ttl time.Duration, now func() time.Time, fetch FetchFunc) *PriceCache {
	if now == nil {
		now = time.Now
	}
	return &PriceCache{
		ttl:     ttl,
		now:     now,
		fetch:   fetch,
		entries: make(map[string]cacheEntry),
	}
}

// Current returns the cached quote for a token when it is within the TTL,
// refreshing otherwise. A failed refresh leaves the stale entry in place
// and returns it (last-known-good); nil only when no fetch ever succeeded.
func (c *PriceCache) Current(ctx context.Context, tokenAddress string) *model.PriceQuote {
	key := validate.NormalizeAddress(tokenAddress)

	c.mu.Lock()
	entry, ok := c.entries[key]
	fresh := ok && c.now().Sub(entry.fetchedAt) < c.ttl
	c.mu.Unlock()

	if fresh {
		return entry.quote
	}

	quote, err := c.fetch(ctx, tokenAddress)
	if err != nil || quote == nil {
		if ok {
			return entry.quote
		}
		return nil
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{quote: quote, fetchedAt: c.now()}
	c.mu.Unlock()

	return quote
}
