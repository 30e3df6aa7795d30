package fleet

import (
	"context"
	"time"

	"lnurl-gateway/internal/discovery"

	"go.uber.org/zap"
)

// Store is the subset of the Discovery Store the adapter polls.
type Store interface {
	GetAll(ctx context.Context, ifETag *uint64) (discovery.Backends, error)
}

// Connector is the subset of the Node RPC Pool the adapter drives:
// registering a newly-discovered backend's connection descriptor.
type Connector interface {
	Connect(addr discovery.Address, implCipher []byte) error
}

// Adapter is the Service Discovery Adapter: a background loop that polls
// the Discovery Store on a cadence, and on an ETag change rebuilds and
// atomically swaps the fleet snapshot.
type Adapter struct {
	fleet      *Fleet
	store      Store
	connector  Connector
	partitions map[string]struct{}
	logger     *zap.Logger

	lastETag *uint64
	known    map[[33]byte]struct{}
}

func NewAdapter(fleet *Fleet, store Store, connector Connector, partitions []string, logger *zap.Logger) *Adapter {
	set := make(map[string]struct{}, len(partitions))
	for _, p := range partitions {
		set[p] = struct{}{}
	}
	return &Adapter{
		fleet:      fleet,
		store:      store,
		connector:  connector,
		partitions: set,
		logger:     logger,
		known:      make(map[[33]byte]struct{}),
	}
}

// Reconcile runs one poll-and-maybe-rebuild cycle.
func (a *Adapter) Reconcile(ctx context.Context) error {
	result, err := a.store.GetAll(ctx, a.lastETag)
	if err != nil {
		return err
	}

	if a.lastETag != nil && result.List == nil {
		// ETag unchanged: keep the cached fleet as-is.
		return nil
	}

	backends := make([]SelectableBackend, 0, len(result.List))
	enablement := make(map[[33]byte]bool, len(result.List))
	stillKnown := make(map[[33]byte]struct{}, len(result.List))

	for _, record := range result.List {
		if !a.intersectsPartitions(record.Partitions) {
			continue
		}

		key := discovery.Key(record.Address)
		if _, alreadyKnown := a.known[key]; !alreadyKnown {
			if err := a.connector.Connect(record.Address, record.Implementation); err != nil {
				a.logger.Warn("skipping backend: connect failed", zap.Error(err))
				continue
			}
		}

		backends = append(backends, SelectableBackend{
			Address:    record.Address,
			Partitions: record.Partitions,
			Weight:     record.Weight,
			Enabled:    record.Enabled,
		})
		enablement[key] = record.Enabled
		stillKnown[key] = struct{}{}
	}

	a.fleet.Swap(&Snapshot{ETag: result.ETag, Backends: backends, Enablement: enablement})
	a.known = stillKnown

	etag := result.ETag
	a.lastETag = &etag
	return nil
}

func (a *Adapter) intersectsPartitions(backendPartitions []string) bool {
	if len(a.partitions) == 0 {
		return true
	}
	for _, p := range backendPartitions {
		if _, ok := a.partitions[p]; ok {
			return true
		}
	}
	return false
}

// Run blocks, reconciling on the given interval until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Reconcile(ctx); err != nil {
				a.logger.Warn("discovery reconcile failed", zap.Error(err))
			}
		}
	}
}
