package selection

import (
	"lnurl-gateway/internal/fleet"
)

// Engine picks a backend for an invoice request according to its
// configured Policy.
type Engine struct {
	policy  Policy
	metrics MetricsLookup
}

func New(policy Policy, metrics MetricsLookup) *Engine {
	return &Engine{policy: policy, metrics: metrics}
}

// anyPartition is the sentinel passed by the health-check endpoint (spec
// §4.7), which picks any candidate with an empty partition/capacity
// predicate.
const anyPartition = ""

// Pick chooses a backend eligible to serve partition for amountMsat,
// given a routing key (consulted only by the consistent-hash policy) and
// an optional capacity bias. Per spec §4.6, a pick that finds nothing
// under the configured capacity bias is retried exactly once with the
// bias dropped entirely.
func (e *Engine) Pick(snapshot *fleet.Snapshot, partition string, amountMsat uint64, key []byte, capacityBias *float64) (fleet.SelectableBackend, bool) {
	if b, ok := e.pickPass(snapshot, partition, amountMsat, key, capacityBias); ok {
		return b, true
	}
	if capacityBias != nil {
		return e.pickPass(snapshot, partition, amountMsat, key, nil)
	}
	return fleet.SelectableBackend{}, false
}

// HealthCheck picks any enabled, healthy backend regardless of partition
// or capacity, for the readiness endpoints (spec §4.7).
func (e *Engine) HealthCheck(snapshot *fleet.Snapshot) (fleet.SelectableBackend, bool) {
	return e.pickPass(snapshot, anyPartition, 0, nil, nil)
}

func (e *Engine) pickPass(snapshot *fleet.Snapshot, partition string, amountMsat uint64, key []byte, capacityBias *float64) (fleet.SelectableBackend, bool) {
	candidates := e.policy.Candidates(snapshot.Backends, key)
	maxIter := e.policy.MaxIterations(len(snapshot.Backends))
	if maxIter > len(candidates) {
		maxIter = len(candidates)
	}

	for i := 0; i < maxIter; i++ {
		b := candidates[i]
		if e.eligible(snapshot, b, partition, amountMsat, capacityBias) {
			return b, true
		}
	}
	return fleet.SelectableBackend{}, false
}

func (e *Engine) eligible(snapshot *fleet.Snapshot, b fleet.SelectableBackend, partition string, amountMsat uint64, capacityBias *float64) bool {
	key := [33]byte{}
	copy(key[:], b.Address.SerializeCompressed())
	if enabled, ok := snapshot.Enablement[key]; !ok || !enabled {
		return false
	}

	snap, known := e.metrics.Get(b.Address)
	if !known || !snap.Healthy {
		return false
	}

	if partition != anyPartition && !b.HasPartition(partition) {
		return false
	}

	if capacityBias != nil {
		limit := float64(snap.EffectiveInboundMsat) * (1 + *capacityBias)
		if float64(amountMsat) > limit {
			return false
		}
	}

	return true
}
