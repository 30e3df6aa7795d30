package invoice

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"lnurl-gateway/internal/backoff"
	"lnurl-gateway/internal/discovery"
	"lnurl-gateway/internal/fleet"
	"lnurl-gateway/internal/metrics"
	"lnurl-gateway/internal/offer"
	"lnurl-gateway/internal/pool"
	"lnurl-gateway/internal/selection"
	"lnurl-gateway/internal/serviceerr"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticFleet struct{ snap *fleet.Snapshot }

func (s staticFleet) Current() *fleet.Snapshot { return s.snap }

type staticMetrics struct{ snap metrics.Snapshot }

func (s staticMetrics) Get(discovery.Address) (metrics.Snapshot, bool) { return s.snap, true }

type staticOffers struct {
	off *offer.Offer
	err error
}

func (s staticOffers) Offer(context.Context, string, uuid.UUID) (*offer.Offer, error) {
	return s.off, s.err
}

type fakeDispatcher struct {
	features    pool.Features
	featuresErr error
	invoice     string
	invoiceErr  error
	calls       int
}

func (f *fakeDispatcher) Features(context.Context, discovery.Address) (pool.Features, error) {
	return f.features, f.featuresErr
}

func (f *fakeDispatcher) GetInvoice(context.Context, discovery.Address, *uint64, pool.Description, *uint32) (string, error) {
	f.calls++
	return f.invoice, f.invoiceErr
}

type noopEvents struct{ published []string }

func (n *noopEvents) Publish(_ context.Context, stream string, _ []byte) (string, error) {
	n.published = append(n.published, stream)
	return "0-1", nil
}

func newTestSnapshot(t *testing.T, seed int64) (*fleet.Snapshot, discovery.Address) {
	t.Helper()
	_, pub := btcec.PrivKeyFromBytes([]byte{byte(seed), byte(seed >> 8), 1, 2, 3})
	backends := []fleet.SelectableBackend{
		{Address: pub, Partitions: []string{"default"}, Weight: 1, Enabled: true},
	}
	enablement := map[[33]byte]bool{discovery.Key(pub): true}
	return &fleet.Snapshot{Backends: backends, Enablement: enablement}, pub
}

func testOffer() *offer.Offer {
	metadataJSON := `[["text/plain","hi"]]`
	return &offer.Offer{
		Partition:          "default",
		ID:                 uuid.New(),
		MinSendable:        1000,
		MaxSendable:        100_000,
		MetadataJSONString: metadataJSON,
		MetadataJSONHash:   sha256.Sum256([]byte(metadataJSON)),
	}
}

func TestIssue_Success(t *testing.T) {
	snap, _ := newTestSnapshot(t, 1)
	m := staticMetrics{snap: metrics.Snapshot{Healthy: true, EffectiveInboundMsat: 1_000_000}}
	off := testOffer()
	dispatcher := &fakeDispatcher{features: pool.Features{InvoiceFromDescHash: true}, invoice: "lnbc1..."}
	events := &noopEvents{}

	orch := New(staticFleet{snap: snap}, selection.New(selection.NewRoundRobin(), m), dispatcher,
		backoff.Stop(), staticOffers{off: off}, events, nil, zap.NewNop())

	inv, err := orch.Issue(context.Background(), Request{Partition: "default", OfferID: off.ID, AmountMsat: 5000})
	require.NoError(t, err)
	assert.Equal(t, "lnbc1...", inv)
	assert.Equal(t, 1, dispatcher.calls)
	assert.Contains(t, events.published, issuedStream)
}

func TestIssue_AmountOutOfRangeIsDownstreamNoRetry(t *testing.T) {
	snap, _ := newTestSnapshot(t, 2)
	m := staticMetrics{snap: metrics.Snapshot{Healthy: true, EffectiveInboundMsat: 1_000_000}}
	off := testOffer()
	dispatcher := &fakeDispatcher{invoice: "lnbc1..."}

	orch := New(staticFleet{snap: snap}, selection.New(selection.NewRoundRobin(), m), dispatcher,
		backoff.Stop(), staticOffers{off: off}, nil, nil, zap.NewNop())

	_, err := orch.Issue(context.Background(), Request{Partition: "default", OfferID: off.ID, AmountMsat: 1})
	require.Error(t, err)
	assert.True(t, serviceerr.Is(err, serviceerr.Downstream))
	assert.Equal(t, 0, dispatcher.calls)
}

func TestIssue_UnknownOfferIsDownstream(t *testing.T) {
	snap, _ := newTestSnapshot(t, 3)
	m := staticMetrics{snap: metrics.Snapshot{Healthy: true, EffectiveInboundMsat: 1_000_000}}
	dispatcher := &fakeDispatcher{}

	orch := New(staticFleet{snap: snap}, selection.New(selection.NewRoundRobin(), m), dispatcher,
		backoff.Stop(), staticOffers{off: nil}, nil, nil, zap.NewNop())

	_, err := orch.Issue(context.Background(), Request{Partition: "default", OfferID: uuid.New(), AmountMsat: 5000})
	require.Error(t, err)
	assert.True(t, serviceerr.Is(err, serviceerr.Downstream))
}

func TestIssue_UpstreamDispatchFailureRetriesThenExhausts(t *testing.T) {
	snap, _ := newTestSnapshot(t, 4)
	m := staticMetrics{snap: metrics.Snapshot{Healthy: true, EffectiveInboundMsat: 1_000_000}}
	off := testOffer()
	dispatcher := &fakeDispatcher{features: pool.Features{InvoiceFromDescHash: true}, invoiceErr: serviceerr.Upstreamf("pool.GetInvoice", "connection refused")}

	cfg := backoff.DefaultExponentialConfig()
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 2 * time.Millisecond
	cfg.MaxElapsedTime = 20 * time.Millisecond

	orch := New(staticFleet{snap: snap}, selection.New(selection.NewRoundRobin(), m), dispatcher,
		backoff.Exponential(cfg), staticOffers{off: off}, nil, nil, zap.NewNop())

	_, err := orch.Issue(context.Background(), Request{Partition: "default", OfferID: off.ID, AmountMsat: 5000})
	require.Error(t, err)
	assert.True(t, serviceerr.Is(err, serviceerr.Upstream))
	assert.Greater(t, dispatcher.calls, 1)
}

func TestIssue_NoEligibleBackendIsUpstream(t *testing.T) {
	snap := &fleet.Snapshot{Backends: nil, Enablement: map[[33]byte]bool{}}
	m := staticMetrics{}
	off := testOffer()
	dispatcher := &fakeDispatcher{}

	orch := New(staticFleet{snap: snap}, selection.New(selection.NewRoundRobin(), m), dispatcher,
		backoff.Stop(), staticOffers{off: off}, nil, nil, zap.NewNop())

	_, err := orch.Issue(context.Background(), Request{Partition: "default", OfferID: off.ID, AmountMsat: 5000})
	require.Error(t, err)
	assert.True(t, serviceerr.Is(err, serviceerr.Upstream))
}

func TestIssue_UnservedPartitionIsNotFound(t *testing.T) {
	snap, _ := newTestSnapshot(t, 5)
	m := staticMetrics{snap: metrics.Snapshot{Healthy: true, EffectiveInboundMsat: 1_000_000}}
	off := testOffer()
	dispatcher := &fakeDispatcher{}

	orch := New(staticFleet{snap: snap}, selection.New(selection.NewRoundRobin(), m), dispatcher,
		backoff.Stop(), staticOffers{off: off}, nil, nil, zap.NewNop())
	orch.SetPartitions([]string{"other"})

	_, err := orch.Issue(context.Background(), Request{Partition: "default", OfferID: off.ID, AmountMsat: 5000})
	require.Error(t, err)
	assert.True(t, serviceerr.Is(err, serviceerr.Downstream))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, dispatcher.calls)
}

func TestIssue_CapacityBiasOnlyAppliesToFirstAttempt(t *testing.T) {
	snap, _ := newTestSnapshot(t, 6)
	// Capacity (100 msat) far below the 5000 msat amount, so
	// the first pick (with bias) fails purely on capacity while the second
	// (bias dropped) succeeds - exercised indirectly by the retry loop
	// reusing that relaxed predicate on every attempt after the first.
	m := staticMetrics{snap: metrics.Snapshot{Healthy: true, EffectiveInboundMsat: 100}}
	off := testOffer()
	dispatcher := &fakeDispatcher{
		features:   pool.Features{InvoiceFromDescHash: true},
		invoiceErr: serviceerr.Upstreamf("pool.GetInvoice", "connection refused"),
	}

	cfg := backoff.DefaultExponentialConfig()
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 2 * time.Millisecond
	cfg.MaxElapsedTime = 10 * time.Millisecond

	bias := -0.99
	orch := New(staticFleet{snap: snap}, selection.New(selection.NewRoundRobin(), m), dispatcher,
		backoff.Exponential(cfg), staticOffers{off: off}, nil, &bias, zap.NewNop())

	_, err := orch.Issue(context.Background(), Request{Partition: "default", OfferID: off.ID, AmountMsat: 5000})
	require.Error(t, err)
	// Every attempt reached the dispatcher, meaning capacity never
	// suppressed a pick past the first attempt's two-pass fallback.
	assert.Greater(t, dispatcher.calls, 1)
}

func TestDescribe_UsesHashForLNDAndTextForCLN(t *testing.T) {
	off := testOffer()

	lnd := describe(pool.Features{InvoiceFromDescHash: true}, *off)
	assert.Equal(t, pool.DescriptionHash, lnd.Kind)
	assert.Equal(t, off.MetadataJSONHash, lnd.ResolveHash())

	cln := describe(pool.Features{InvoiceFromDescHash: false}, *off)
	assert.Equal(t, pool.DescriptionDirectIntoHash, cln.Kind)
	assert.Equal(t, off.MetadataJSONHash, cln.ResolveHash())
}
