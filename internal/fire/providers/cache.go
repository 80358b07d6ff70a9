package providers

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// defaultCacheTTL is how long a fetched payload stays fresh.
const defaultCacheTTL = 30 * time.Minute

// ttlCache is a keyed cache with expiry checked on read. Entries are not
// proactively evicted; a stale entry is simply refetched by the caller.
// Each provider owns its own instance.
type ttlCache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clockwork.Clock
	entries map[string]cacheEntry[T]
}

type cacheEntry[T any] struct {
	value     T
	fetchedAt time.Time
}

func newTTLCache[T any](ttl time.Duration, clock clockwork.Clock) *ttlCache[T] {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &ttlCache[T]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry[T]),
	}
}

func (c *ttlCache[T]) get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.clock.Since(e.fetchedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[T]) put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[T]{value: value, fetchedAt: c.clock.Now()}
}
