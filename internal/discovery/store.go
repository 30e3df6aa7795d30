package discovery

import "context"

// Store is the Discovery Store contract (spec §4.1). Every successful
// mutating operation increments the ETag counter in the same transaction
// as the row mutation. On unique-constraint violation during Post, the
// counter is not incremented.
type Store interface {
	// Get is an O(1) lookup by address.
	Get(ctx context.Context, addr Address) (*Backend, error)

	// GetAll returns the current ETag alongside the full list, unless
	// ifETag matches the store's current counter, in which case List is
	// omitted.
	GetAll(ctx context.Context, ifETag *uint64) (Backends, error)

	// Post inserts a new backend. It returns (addr, true) on insert, or
	// (nil, false) without error if an entry with the same address
	// already exists.
	Post(ctx context.Context, backend Backend) (Address, bool, error)

	// Put upserts a backend, returning true iff a new row was created.
	Put(ctx context.Context, backend Backend) (bool, error)

	// Patch partially updates a backend; returns false iff no row
	// matched. A patch with every field absent commits no mutation and
	// does not increment the ETag.
	Patch(ctx context.Context, patch Patch) (bool, error)

	// Delete removes a backend, returning true iff a row was removed.
	Delete(ctx context.Context, addr Address) (bool, error)
}
