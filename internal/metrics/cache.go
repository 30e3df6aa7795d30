// Package metrics holds the last known capacity snapshot for every
// backend in the fleet, refreshed by a background task on a configurable
// interval. Readers never block on a live RPC.
package metrics

import (
	"context"
	"sync"
	"time"

	"lnurl-gateway/internal/discovery"
	"lnurl-gateway/internal/pool"

	"go.uber.org/zap"
)

// Snapshot is the capacity data for one backend at the last refresh.
type Snapshot struct {
	Healthy              bool
	EffectiveInboundMsat uint64
}

// BackendLister supplies the current fleet to refresh against. Decoupled
// from the fleet package's concrete type so metrics and fleet can each be
// tested independently.
type BackendLister interface {
	Addresses() []discovery.Address
}

// Querier is the subset of the Node RPC Pool the cache refresher needs.
type Querier interface {
	GetMetrics(ctx context.Context, addr discovery.Address) (pool.Metrics, error)
}

// Cache is the Metrics Cache. Its zero value is not usable; construct
// with New.
type Cache struct {
	mu   sync.RWMutex
	data map[[33]byte]Snapshot

	pool   Querier
	fleet  BackendLister
	logger *zap.Logger
}

func New(p Querier, fleet BackendLister, logger *zap.Logger) *Cache {
	return &Cache{
		data:   make(map[[33]byte]Snapshot),
		pool:   p,
		fleet:  fleet,
		logger: logger,
	}
}

// Get returns the last known snapshot for addr. The second return value
// is false when no data has ever been collected for this backend —
// callers must treat that as "no capacity data", not as unhealthy.
func (c *Cache) Get(addr discovery.Address) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.data[discovery.Key(addr)]
	return s, ok
}

// Refresh queries every backend currently in the fleet and replaces their
// snapshots. A single backend's failure does not prevent the others from
// refreshing, and leaves that backend's previous snapshot in place.
func (c *Cache) Refresh(ctx context.Context) {
	for _, addr := range c.fleet.Addresses() {
		m, err := c.pool.GetMetrics(ctx, addr)
		if err != nil {
			c.logger.Warn("metrics refresh failed for backend", zap.Error(err))
			continue
		}

		c.mu.Lock()
		c.data[discovery.Key(addr)] = Snapshot{Healthy: m.Healthy, EffectiveInboundMsat: m.EffectiveInboundMsat}
		c.mu.Unlock()
	}
}

// Run blocks, refreshing on the given interval until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}
