package fleet

import (
	"context"
	"errors"
	"testing"

	"lnurl-gateway/internal/discovery"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	responses []discovery.Backends
	calls     int
	lastIfETag *uint64
}

func (f *fakeStore) GetAll(_ context.Context, ifETag *uint64) (discovery.Backends, error) {
	f.lastIfETag = ifETag
	r := f.responses[f.calls]
	if f.calls < len(f.responses)-1 {
		f.calls++
	}
	return r, nil
}

type fakeConnector struct {
	failFor map[[33]byte]bool
	calls   []discovery.Address
}

func (f *fakeConnector) Connect(addr discovery.Address, _ []byte) error {
	f.calls = append(f.calls, addr)
	if f.failFor != nil && f.failFor[discovery.Key(addr)] {
		return errors.New("connect failed")
	}
	return nil
}

func newBackend(t *testing.T, partitions []string, weight int) discovery.Backend {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return discovery.Backend{Address: priv.PubKey(), Partitions: partitions, Weight: weight, Enabled: true}
}

func TestAdapter_FirstReconcileBuildsFleet(t *testing.T) {
	b1 := newBackend(t, []string{"default"}, 1)
	store := &fakeStore{responses: []discovery.Backends{{ETag: 1, List: []discovery.Backend{b1}}}}
	connector := &fakeConnector{}
	f := New()
	a := NewAdapter(f, store, connector, []string{"default"}, zap.NewNop())

	require.NoError(t, a.Reconcile(context.Background()))

	snap := f.Current()
	assert.Equal(t, uint64(1), snap.ETag)
	require.Len(t, snap.Backends, 1)
	assert.Len(t, connector.calls, 1, "new backend must trigger a connect")
}

func TestAdapter_UnchangedETagKeepsCache(t *testing.T) {
	b1 := newBackend(t, []string{"default"}, 1)
	store := &fakeStore{responses: []discovery.Backends{
		{ETag: 1, List: []discovery.Backend{b1}},
		{ETag: 1, List: nil},
	}}
	connector := &fakeConnector{}
	f := New()
	a := NewAdapter(f, store, connector, []string{"default"}, zap.NewNop())

	require.NoError(t, a.Reconcile(context.Background()))
	first := f.Current()

	require.NoError(t, a.Reconcile(context.Background()))
	second := f.Current()

	assert.Same(t, first, second, "unchanged etag must not rebuild the snapshot")
	assert.Len(t, connector.calls, 1, "second reconcile must not reconnect an already-known backend")
}

func TestAdapter_FiltersByPartition(t *testing.T) {
	inPartition := newBackend(t, []string{"default"}, 1)
	outOfPartition := newBackend(t, []string{"other"}, 1)
	store := &fakeStore{responses: []discovery.Backends{
		{ETag: 1, List: []discovery.Backend{inPartition, outOfPartition}},
	}}
	f := New()
	a := NewAdapter(f, store, &fakeConnector{}, []string{"default"}, zap.NewNop())

	require.NoError(t, a.Reconcile(context.Background()))

	snap := f.Current()
	require.Len(t, snap.Backends, 1)
	assert.Equal(t, inPartition.Address, snap.Backends[0].Address)
}

func TestAdapter_SkipsBackendOnConnectFailure(t *testing.T) {
	ok := newBackend(t, []string{"default"}, 1)
	broken := newBackend(t, []string{"default"}, 1)
	store := &fakeStore{responses: []discovery.Backends{
		{ETag: 1, List: []discovery.Backend{ok, broken}},
	}}
	connector := &fakeConnector{failFor: map[[33]byte]bool{discovery.Key(broken.Address): true}}
	f := New()
	a := NewAdapter(f, store, connector, []string{"default"}, zap.NewNop())

	require.NoError(t, a.Reconcile(context.Background()))

	snap := f.Current()
	require.Len(t, snap.Backends, 1)
	assert.Equal(t, ok.Address, snap.Backends[0].Address)
}
