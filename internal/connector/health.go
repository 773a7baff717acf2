package connector

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultHealthTTL is how long a probe result is reused.
const DefaultHealthTTL = 60 * time.Second

// Health is the outcome of a liveness probe.
type Health struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthCache memoizes the last probe result for a fixed TTL. Concurrent
// refreshes share a single probe.
type HealthCache struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.RWMutex
	last *Health

	group singleflight.Group
}

// NewHealthCache creates a cache. A nil clock uses time.Now.
func NewHealthCache(ttl time.Duration, now func() time.Time) *HealthCache {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultHealthTTL
	}
	return &HealthCache{ttl: ttl, now: now}
}

// Get returns the cached result when it is younger than the TTL, otherwise
// runs probe and caches its outcome. force always re-probes.
func (c *HealthCache) Get(ctx context.Context, force bool, probe func(context.Context) error) Health {
	if !force {
		if h, ok := c.Fresh(); ok {
			return h
		}
	}

	v, _, _ := c.group.Do("probe", func() (any, error) {
		err := probe(ctx)
		h := Health{Healthy: err == nil, CheckedAt: c.now()}
		if err != nil {
			h.Error = err.Error()
		}
		c.mu.Lock()
		c.last = &h
		c.mu.Unlock()
		return h, nil
	})
	return v.(Health)
}

// Fresh returns the cached result if it is still within the TTL.
func (c *HealthCache) Fresh() (Health, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil || c.now().Sub(c.last.CheckedAt) >= c.ttl {
		return Health{}, false
	}
	return *c.last, true
}

// Cached returns the last result regardless of age.
func (c *HealthCache) Cached() (Health, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Health{}, false
	}
	return *c.last, true
}

// Reset forgets the cached result.
func (c *HealthCache) Reset() {
	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()
}
