package offer

import (
	"context"

	"github.com/google/uuid"
)

// Store persists offer records, scoped by partition.
type Store interface {
	GetOffer(ctx context.Context, partition string, id uuid.UUID) (*Record, error)
	GetOffers(ctx context.Context, partition string, after *uuid.UUID, limit int) ([]Record, error)
	PostOffer(ctx context.Context, r Record) (bool, error)
	PutOffer(ctx context.Context, r Record) (bool, error)
	DeleteOffer(ctx context.Context, partition string, id uuid.UUID) (bool, error)
}

// MetadataStore persists offer metadata rows, scoped by partition.
type MetadataStore interface {
	GetMetadata(ctx context.Context, partition string, id uuid.UUID) (*Metadata, error)
	GetAllMetadata(ctx context.Context, partition string, after *uuid.UUID, limit int) ([]Metadata, error)
	PostMetadata(ctx context.Context, m Metadata) (bool, error)
	PutMetadata(ctx context.Context, m Metadata) (bool, error)
	DeleteMetadata(ctx context.Context, partition string, id uuid.UUID) (bool, error)
}

// Provider composes Store and MetadataStore to materialize the LNURL-Pay
// offer served to wallets.
type Provider interface {
	Offer(ctx context.Context, partition string, id uuid.UUID) (*Offer, error)
}
