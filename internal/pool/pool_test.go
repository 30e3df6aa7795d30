package pool

import (
	"context"
	"errors"
	"testing"

	"lnurl-gateway/internal/crypto"
	"lnurl-gateway/internal/discovery"
	"lnurl-gateway/internal/serviceerr"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	dialCount  int
	failNext   bool
	invoice    string
	closeCalls int
}

func (f *fakeBackend) GetInvoice(context.Context, *uint64, Description, *uint32) (string, error) {
	if f.failNext {
		f.failNext = false
		return "", errors.New("boom")
	}
	return f.invoice, nil
}

func (f *fakeBackend) GetMetrics(context.Context) (Metrics, error) {
	return Metrics{Healthy: true, EffectiveInboundMsat: 1000}, nil
}

func (f *fakeBackend) Features() Features { return Features{InvoiceFromDescHash: true} }

func (f *fakeBackend) Close() error {
	f.closeCalls++
	return nil
}

func testAddress(t *testing.T) discovery.Address {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func testPool(t *testing.T, backend *fakeBackend) (*Pool, discovery.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	var dialCount int
	dialer := func(Implementation) (Backend, error) {
		dialCount++
		backend.dialCount = dialCount
		return backend, nil
	}

	p := New(key, dialer, dialer, dialer)
	addr := testAddress(t)

	ciphertext, err := EncodeImplementation(Implementation{Kind: LndGrpc, Address: "x:1"}, key)
	require.NoError(t, err)
	require.NoError(t, p.Connect(addr, ciphertext))

	return p, addr
}

func TestPool_LazyConnectOnFirstUse(t *testing.T) {
	backend := &fakeBackend{invoice: "lnbc1..."}
	p, addr := testPool(t, backend)

	assert.Equal(t, 0, backend.dialCount)

	invoice, err := p.GetInvoice(context.Background(), addr, nil, Direct("hi"), nil)
	require.NoError(t, err)
	assert.Equal(t, "lnbc1...", invoice)
	assert.Equal(t, 1, backend.dialCount)

	_, err = p.GetInvoice(context.Background(), addr, nil, Direct("hi"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.dialCount, "second call reuses the cached connection")
}

func TestPool_InvalidatesConnectionOnError(t *testing.T) {
	backend := &fakeBackend{invoice: "lnbc1...", failNext: true}
	p, addr := testPool(t, backend)

	_, err := p.GetInvoice(context.Background(), addr, nil, Direct("hi"), nil)
	require.Error(t, err)

	_, err = p.GetInvoice(context.Background(), addr, nil, Direct("hi"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.dialCount, "a failed RPC must force a redial")
}

func TestPool_GetMetrics(t *testing.T) {
	backend := &fakeBackend{}
	p, addr := testPool(t, backend)

	metrics, err := p.GetMetrics(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, metrics.Healthy)
	assert.Equal(t, uint64(1000), metrics.EffectiveInboundMsat)
}

func TestPool_UnknownBackendIsInternalError(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p := New(key, nil, nil, nil)

	_, err = p.GetInvoice(context.Background(), testAddress(t), nil, Direct("hi"), nil)
	assert.Error(t, err)
	assert.True(t, serviceerr.Is(err, serviceerr.Internal))
}

func TestPool_Disconnect(t *testing.T) {
	backend := &fakeBackend{invoice: "lnbc1..."}
	p, addr := testPool(t, backend)

	_, err := p.GetInvoice(context.Background(), addr, nil, Direct("hi"), nil)
	require.NoError(t, err)

	p.Disconnect(addr)
	assert.Equal(t, 1, backend.closeCalls)

	_, err = p.GetInvoice(context.Background(), addr, nil, Direct("hi"), nil)
	assert.Error(t, err, "disconnected backend has no pool entry")
}
