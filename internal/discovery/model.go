// Package discovery persists the fleet of registered Lightning backends
// and the monotonic ETag used to cache the backend list across the wire.
package discovery

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Address is the stable identifier of a backend: a 33-byte compressed
// secp256k1 public key. Implementations must not synthesize a different
// identity across restarts.
type Address = *btcec.PublicKey

// Backend is a registered Lightning node in the fleet.
type Backend struct {
	Address        Address
	Name           *string
	Partitions     []string
	Weight         int
	Enabled        bool
	Implementation []byte // opaque descriptor: variant tag + connection params
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Patch is a partial update to a Backend; nil fields are left unchanged.
type Patch struct {
	Address        Address
	Name           *string
	Partitions     []string
	Weight         *int
	Enabled        *bool
	Implementation []byte
}

// Backends is the response to a conditional listing: List is nil when
// the requested ETag matched the store's current counter.
type Backends struct {
	ETag uint64
	List []Backend
}

// HasPartition reports whether the backend is eligible to serve the given
// partition.
func (b Backend) HasPartition(partition string) bool {
	for _, p := range b.Partitions {
		if p == partition {
			return true
		}
	}
	return false
}

// Key returns the 33-byte compressed serialization used as the storage
// primary key and as the Node RPC Pool's map key.
func Key(addr Address) [33]byte {
	var out [33]byte
	copy(out[:], addr.SerializeCompressed())
	return out
}
