// Package pool dispatches Lightning Network RPCs to whichever backend
// variant a discovery record names — CLN over gRPC, LND over gRPC, or a
// plain HTTP remote gateway — behind one small interface, caching the
// established connection per backend and dropping it on first error.
package pool

import (
	"context"
	"crypto/sha256"
)

// DescriptionKind selects how an invoice's BOLT-11 description is bound.
type DescriptionKind int

const (
	// DescriptionDirect embeds the description text verbatim.
	DescriptionDirect DescriptionKind = iota
	// DescriptionDirectIntoHash sends the text and asks the node to hash
	// it into the description_hash itself (the CLN path).
	DescriptionDirectIntoHash
	// DescriptionHash injects an already-computed description_hash
	// directly (the LND path). Backends that cannot accept a raw hash
	// MUST reject this with a configuration error.
	DescriptionHash
)

// Description is the tagged description-binding the invoice orchestrator
// passes to GetInvoice.
type Description struct {
	Kind DescriptionKind
	Text string
	Hash [32]byte
}

func Direct(text string) Description { return Description{Kind: DescriptionDirect, Text: text} }

func DirectIntoHash(text string) Description {
	return Description{Kind: DescriptionDirectIntoHash, Text: text}
}

func HashDescription(h [32]byte) Description { return Description{Kind: DescriptionHash, Hash: h} }

// ResolveHash returns the description_hash a Direct(IntoHash) description
// would produce; used by tests and by backends that need the hash
// regardless of binding kind.
func (d Description) ResolveHash() [32]byte {
	switch d.Kind {
	case DescriptionHash:
		return d.Hash
	case DescriptionDirectIntoHash:
		return sha256.Sum256([]byte(d.Text))
	default:
		return [32]byte{}
	}
}

// Metrics is a point-in-time capacity snapshot for one backend.
type Metrics struct {
	Healthy              bool
	EffectiveInboundMsat uint64
}

// Features describes a backend's invoice-binding capability.
type Features struct {
	// InvoiceFromDescHash reports whether GetInvoice accepts a
	// DescriptionHash directly (true for LND, false for CLN).
	InvoiceFromDescHash bool
}

// Backend is the per-connection contract every pool variant implements.
type Backend interface {
	GetInvoice(ctx context.Context, amountMsat *uint64, desc Description, expirySecs *uint32) (string, error)
	GetMetrics(ctx context.Context) (Metrics, error)
	Features() Features
	Close() error
}
