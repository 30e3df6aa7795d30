package selection

import (
	"encoding/hex"
	"math/big"
	"testing"

	"lnurl-gateway/internal/discovery"
	"lnurl-gateway/internal/fleet"
	"lnurl-gateway/internal/metrics"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress(t *testing.T, seed int64) discovery.Address {
	t.Helper()
	priv, pub := btcec.PrivKeyFromBytes(big.NewInt(seed).Bytes())
	_ = priv
	return pub
}

type fakeMetrics struct {
	data map[[33]byte]metrics.Snapshot
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{data: map[[33]byte]metrics.Snapshot{}} }

func (f *fakeMetrics) set(addr discovery.Address, healthy bool, inbound uint64) {
	f.data[discovery.Key(addr)] = metrics.Snapshot{Healthy: healthy, EffectiveInboundMsat: inbound}
}

func (f *fakeMetrics) Get(addr discovery.Address) (metrics.Snapshot, bool) {
	s, ok := f.data[discovery.Key(addr)]
	return s, ok
}

func buildSnapshot(backends []fleet.SelectableBackend) *fleet.Snapshot {
	enablement := make(map[[33]byte]bool, len(backends))
	for _, b := range backends {
		enablement[discovery.Key(b.Address)] = b.Enabled
	}
	return &fleet.Snapshot{Backends: backends, Enablement: enablement}
}

func TestEngine_FiltersByPartition(t *testing.T) {
	a := testAddress(t, 101)
	b := testAddress(t, 102)

	m := newFakeMetrics()
	m.set(a, true, 100_000)
	m.set(b, true, 100_000)

	backends := []fleet.SelectableBackend{
		{Address: a, Partitions: []string{"default"}, Weight: 1, Enabled: true},
		{Address: b, Partitions: []string{"other"}, Weight: 1, Enabled: true},
	}
	snap := buildSnapshot(backends)

	engine := New(NewRoundRobin(), m)
	for i := 0; i < 10; i++ {
		pick, ok := engine.Pick(snap, "other", 1000, nil, nil)
		require.True(t, ok)
		assert.Equal(t, discovery.Key(b), discovery.Key(pick.Address))
	}
}

func TestEngine_DisabledBackendNeverSelected(t *testing.T) {
	a := testAddress(t, 201)
	m := newFakeMetrics()
	m.set(a, true, 100_000)

	backends := []fleet.SelectableBackend{
		{Address: a, Partitions: []string{"default"}, Weight: 1, Enabled: false},
	}
	snap := buildSnapshot(backends)

	engine := New(NewRoundRobin(), m)
	_, ok := engine.Pick(snap, "default", 1000, nil, nil)
	assert.False(t, ok)
}

func TestEngine_CapacityFallback(t *testing.T) {
	a := testAddress(t, 301)
	b := testAddress(t, 302)
	m := newFakeMetrics()
	m.set(a, true, 80_000)
	m.set(b, true, 80_000)

	backends := []fleet.SelectableBackend{
		{Address: a, Partitions: []string{"default"}, Weight: 1, Enabled: true},
		{Address: b, Partitions: []string{"default"}, Weight: 1, Enabled: true},
	}
	snap := buildSnapshot(backends)

	bias := -0.2
	engine := New(NewRoundRobin(), m)

	// 80_000 * 0.8 = 64_000 < 75_000: first pass must fail, second pass
	// (bias dropped) must succeed.
	pick, ok := engine.Pick(snap, "default", 75_000, nil, &bias)
	require.True(t, ok)
	assert.Contains(t, []string{hexKey(a), hexKey(b)}, hexKey(pick.Address))
}

func TestEngine_NoBiasIgnoresCapacity(t *testing.T) {
	a := testAddress(t, 401)
	m := newFakeMetrics()
	m.set(a, true, 1) // effectively no capacity

	backends := []fleet.SelectableBackend{
		{Address: a, Partitions: []string{"default"}, Weight: 1, Enabled: true},
	}
	snap := buildSnapshot(backends)

	engine := New(NewRoundRobin(), m)
	pick, ok := engine.Pick(snap, "default", 1_000_000, nil, nil)
	require.True(t, ok)
	assert.Equal(t, hexKey(a), hexKey(pick.Address))
}

func TestEngine_UnknownMetricsExcludesBackend(t *testing.T) {
	a := testAddress(t, 501)
	m := newFakeMetrics() // no entry for a

	backends := []fleet.SelectableBackend{
		{Address: a, Partitions: []string{"default"}, Weight: 1, Enabled: true},
	}
	snap := buildSnapshot(backends)

	engine := New(NewRoundRobin(), m)
	_, ok := engine.Pick(snap, "default", 1000, nil, nil)
	assert.False(t, ok)
}

func TestConsistentHash_SameKeySameBackend(t *testing.T) {
	a := testAddress(t, 601)
	b := testAddress(t, 602)
	c := testAddress(t, 603)
	m := newFakeMetrics()
	m.set(a, true, 100_000)
	m.set(b, true, 100_000)
	m.set(c, true, 100_000)

	backends := []fleet.SelectableBackend{
		{Address: a, Partitions: []string{"default"}, Weight: 1, Enabled: true},
		{Address: b, Partitions: []string{"default"}, Weight: 1, Enabled: true},
		{Address: c, Partitions: []string{"default"}, Weight: 1, Enabled: true},
	}
	snap := buildSnapshot(backends)

	engine := New(NewConsistentHash(10), m)
	key := []byte("payer-routing-key")

	first, ok := engine.Pick(snap, "default", 1000, key, nil)
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		pick, ok := engine.Pick(snap, "default", 1000, key, nil)
		require.True(t, ok)
		assert.Equal(t, hexKey(first.Address), hexKey(pick.Address))
	}
}

func TestConsistentHash_RepeatedKeyIsStable(t *testing.T) {
	a := testAddress(t, 701)
	b := testAddress(t, 702)
	m := newFakeMetrics()
	m.set(a, true, 100_000)
	m.set(b, true, 100_000)

	backends := []fleet.SelectableBackend{
		{Address: a, Partitions: []string{"default"}, Weight: 1, Enabled: true},
		{Address: b, Partitions: []string{"default"}, Weight: 1, Enabled: true},
	}
	snap := buildSnapshot(backends)

	engine := New(NewConsistentHash(10), m)

	pickForKey := func(key []byte) string {
		pick, ok := engine.Pick(snap, "default", 1000, key, nil)
		require.True(t, ok)
		return hexKey(pick.Address)
	}

	k1 := pickForKey([]byte("key-one"))
	k1Again := pickForKey([]byte("key-one"))
	assert.Equal(t, k1, k1Again)
}

func TestHealthCheck_IgnoresPartition(t *testing.T) {
	a := testAddress(t, 801)
	m := newFakeMetrics()
	m.set(a, true, 100_000)

	backends := []fleet.SelectableBackend{
		{Address: a, Partitions: []string{"unrelated-partition"}, Weight: 1, Enabled: true},
	}
	snap := buildSnapshot(backends)

	engine := New(NewRoundRobin(), m)
	_, ok := engine.HealthCheck(snap)
	assert.True(t, ok)
}

func hexKey(addr discovery.Address) string {
	return hex.EncodeToString(addr.SerializeCompressed())
}
