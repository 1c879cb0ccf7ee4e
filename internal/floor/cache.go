package floor

import (
	"context"
	"sync"
)

// Cache keys under which the store persists its state, scoped per tenant by
// the cache implementation.
const (
	CacheKeyOrders = "floor.orders.v1"
	CacheKeyTimers = "floor.confirmedTimers.v1"
)

// TenantScopedCache is the durable best-effort store behind cold starts.
// Read returns (nil, nil) on a miss. Callers swallow every error: the cache
// only ever improves startup, it never gates correctness.
type TenantScopedCache interface {
	Read(ctx context.Context, tenant, key string) ([]byte, error)
	Write(ctx context.Context, tenant, key string, value []byte) error
}

// MemoryCache is the in-process TenantScopedCache used by tests and by
// deployments that boot without a database.
type MemoryCache struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string][]byte)}
}

func (c *MemoryCache) Read(ctx context.Context, tenant, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[tenant+":"+key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (c *MemoryCache) Write(ctx context.Context, tenant, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(value))
	copy(out, value)
	c.values[tenant+":"+key] = out
	return nil
}
