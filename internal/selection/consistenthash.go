package selection

import (
	"sort"

	"lnurl-gateway/internal/fleet"

	"github.com/cespare/xxhash/v2"
)

// ConsistentHash orders backends by rendezvous (highest-random-weight)
// score against the routing key: for a fixed key, the same backend sorts
// first regardless of which other backends are present or absent,
// satisfying spec §4.6's "routing key and its hash fully determine the
// candidate sequence" and the §5 concurrency guarantee that concurrent
// requests with the same key pick the same backend.
type ConsistentHash struct {
	maxIterations int
}

// NewConsistentHash builds a ConsistentHash policy with a fixed
// MaxIterations, configured at startup per spec §4.6.
func NewConsistentHash(maxIterations int) *ConsistentHash {
	return &ConsistentHash{maxIterations: maxIterations}
}

func (p *ConsistentHash) Candidates(backends []fleet.SelectableBackend, key []byte) []fleet.SelectableBackend {
	n := len(backends)
	if n == 0 {
		return nil
	}

	type scored struct {
		backend fleet.SelectableBackend
		score   uint64
	}
	scores := make([]scored, n)
	for i, b := range backends {
		scores[i] = scored{backend: b, score: rendezvousScore(key, b)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	out := make([]fleet.SelectableBackend, n)
	for i, s := range scores {
		out[i] = s.backend
	}
	return out
}

func rendezvousScore(key []byte, b fleet.SelectableBackend) uint64 {
	h := xxhash.New()
	_, _ = h.Write(key)
	addr := b.Address.SerializeCompressed()
	_, _ = h.Write(addr)
	return h.Sum64()
}

func (p *ConsistentHash) MaxIterations(int) int {
	return p.maxIterations
}
