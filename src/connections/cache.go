package connections

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	ids     []string
	expires time.Time
}

// connectionsCache memoizes connection lists per user. Concurrent misses for
// the same user share one load, and a load that races an invalidation is
// not stored.
type connectionsCache struct {
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]cacheEntry
	gen     map[string]uint64
}

func newConnectionsCache(ttl time.Duration) *connectionsCache {
	return &connectionsCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
		gen:     make(map[string]uint64),
	}
}

func (c *connectionsCache) get(ctx context.Context, user string, load func(context.Context) ([]string, error)) ([]string, error) {
	c.mu.Lock()
	if e, ok := c.entries[user]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return append([]string(nil), e.ids...), nil
	}
	startGen := c.gen[user]
	c.mu.Unlock()

	v, err, _ := c.group.Do(user, func() (interface{}, error) {
		ids, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen[user] == startGen && c.ttl > 0 {
			c.entries[user] = cacheEntry{ids: ids, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), v.([]string)...), nil
}

func (c *connectionsCache) invalidate(users ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range users {
		delete(c.entries, u)
		c.gen[u]++
	}
	for _, u := range users {
		c.group.Forget(u)
	}
}
