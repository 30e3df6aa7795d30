package selection

import (
	"sync/atomic"

	"lnurl-gateway/internal/fleet"
)

// RoundRobin rotates its starting index by one on every call, per spec
// §4.6's tie-break requirement. MaxIterations is the full fleet size: a
// pick walks the whole rotation before giving up.
type RoundRobin struct {
	counter atomic.Uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (p *RoundRobin) Candidates(backends []fleet.SelectableBackend, _ []byte) []fleet.SelectableBackend {
	n := len(backends)
	if n == 0 {
		return nil
	}

	start := int(p.counter.Add(1)-1) % n
	out := make([]fleet.SelectableBackend, n)
	for i := 0; i < n; i++ {
		out[i] = backends[(start+i)%n]
	}
	return out
}

func (p *RoundRobin) MaxIterations(n int) int {
	return n
}
