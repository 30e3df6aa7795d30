// Package selection implements the Selection Engine (spec §4.6): a
// policy-driven pick of one backend for an invoice request, honouring
// partition membership, health, and an optional capacity bias, with a
// two-pass fallback that drops the capacity constraint entirely rather
// than fail a request outright.
package selection

import (
	"lnurl-gateway/internal/discovery"
	"lnurl-gateway/internal/fleet"
	"lnurl-gateway/internal/metrics"
)

// Policy orders a fleet's backends into the candidate sequence a pick
// walks, and bounds how many of those candidates a single pick examines.
type Policy interface {
	// Candidates returns the ordered (or sampled) sequence of backends
	// this policy would try, given the current fleet and routing key.
	// The returned slice may be longer than MaxIterations; the engine
	// truncates.
	Candidates(backends []fleet.SelectableBackend, key []byte) []fleet.SelectableBackend

	// MaxIterations bounds how many candidates a single pick examines,
	// given the current fleet size.
	MaxIterations(n int) int
}

// MetricsLookup is the subset of the Metrics Cache the engine consults.
type MetricsLookup interface {
	Get(addr discovery.Address) (metrics.Snapshot, bool)
}
