package pool

import (
	"context"
	"sync"

	"lnurl-gateway/internal/discovery"
	"lnurl-gateway/internal/serviceerr"
)

// Dialer opens a Backend for one variant's Implementation descriptor.
type Dialer func(impl Implementation) (Backend, error)

// entry caches one backend's connection. Its own mutex serializes
// connect-and-invalidate against concurrent RPCs to the same backend
// without holding the Pool-wide lock for the duration of an RPC.
type entry struct {
	mu   sync.Mutex
	impl Implementation
	conn Backend
}

// Pool is the Node RPC Pool: one entry per registered backend, connected
// lazily on first use, with the cached channel dropped and redialed
// whenever an RPC returns an error. The pool never proactively probes a
// connection — invalidation-on-error is the only signal.
type Pool struct {
	masterKey []byte

	dialCln        Dialer
	dialLnd        Dialer
	dialRemoteHTTP Dialer

	mu      sync.RWMutex
	entries map[[33]byte]*entry
}

func New(masterKey []byte, dialCln, dialLnd, dialRemoteHTTP Dialer) *Pool {
	return &Pool{
		masterKey:      masterKey,
		dialCln:        dialCln,
		dialLnd:        dialLnd,
		dialRemoteHTTP: dialRemoteHTTP,
		entries:        make(map[[33]byte]*entry),
	}
}

// Connect registers (or updates) a backend's implementation descriptor.
// It does not dial — the connection is established lazily on first RPC,
// per the pool's connection lifecycle contract.
func (p *Pool) Connect(addr discovery.Address, implCipher []byte) error {
	impl, err := DecodeImplementation(implCipher, p.masterKey)
	if err != nil {
		return serviceerr.Wrap(serviceerr.Internal, "pool.Connect", "decoding implementation", err)
	}

	key := discovery.Key(addr)
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		p.entries[key] = &entry{impl: impl}
		return nil
	}
	if e.impl != impl {
		e.mu.Lock()
		e.impl = impl
		e.conn = nil
		e.mu.Unlock()
	}
	return nil
}

// Disconnect removes a backend from the pool, closing any cached
// connection.
func (p *Pool) Disconnect(addr discovery.Address) {
	key := discovery.Key(addr)
	p.mu.Lock()
	e, ok := p.entries[key]
	delete(p.entries, key)
	p.mu.Unlock()

	if ok {
		e.mu.Lock()
		if e.conn != nil {
			_ = e.conn.Close()
		}
		e.mu.Unlock()
	}
}

func (p *Pool) lookup(addr discovery.Address) (*entry, bool) {
	key := discovery.Key(addr)
	p.mu.RLock()
	e, ok := p.entries[key]
	p.mu.RUnlock()
	return e, ok
}

func (p *Pool) ensureConnected(e *entry) (Backend, error) {
	if e.conn != nil {
		return e.conn, nil
	}

	var dial Dialer
	switch e.impl.Kind {
	case ClnGrpc:
		dial = p.dialCln
	case LndGrpc:
		dial = p.dialLnd
	case RemoteHTTP:
		dial = p.dialRemoteHTTP
	default:
		return nil, serviceerr.Internalf("pool.ensureConnected", "unknown implementation kind %q", e.impl.Kind)
	}

	conn, err := dial(e.impl)
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Upstream, "pool.ensureConnected", "connecting to backend", err)
	}
	e.conn = conn
	return conn, nil
}

// GetInvoice requests an invoice from the named backend, dialing it if
// necessary and dropping the cached connection if the RPC fails.
func (p *Pool) GetInvoice(ctx context.Context, addr discovery.Address, amountMsat *uint64, desc Description, expirySecs *uint32) (string, error) {
	e, ok := p.lookup(addr)
	if !ok {
		return "", serviceerr.Internalf("pool.GetInvoice", "no pool entry for backend")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := p.ensureConnected(e)
	if err != nil {
		return "", err
	}

	invoice, err := conn.GetInvoice(ctx, amountMsat, desc, expirySecs)
	if err != nil {
		e.conn = nil
		return "", err
	}
	return invoice, nil
}

// GetMetrics queries the named backend's current capacity snapshot.
func (p *Pool) GetMetrics(ctx context.Context, addr discovery.Address) (Metrics, error) {
	e, ok := p.lookup(addr)
	if !ok {
		return Metrics{}, serviceerr.Internalf("pool.GetMetrics", "no pool entry for backend")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := p.ensureConnected(e)
	if err != nil {
		return Metrics{}, err
	}

	metrics, err := conn.GetMetrics(ctx)
	if err != nil {
		e.conn = nil
		return Metrics{}, err
	}
	return metrics, nil
}

// Features reports the named backend's invoice-binding capability. It
// requires a live connection, since capability generally depends on the
// node's actual software rather than static configuration.
func (p *Pool) Features(ctx context.Context, addr discovery.Address) (Features, error) {
	e, ok := p.lookup(addr)
	if !ok {
		return Features{}, serviceerr.Internalf("pool.Features", "no pool entry for backend")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := p.ensureConnected(e)
	if err != nil {
		return Features{}, err
	}
	return conn.Features(), nil
}
