package offer

import (
	"context"
	"crypto/sha256"

	"lnurl-gateway/internal/serviceerr"

	"github.com/google/uuid"
)

// MetadataEncoder produces the exact LNURL metadata-array JSON string for
// a Metadata row. Implemented by lnurlproto.MetadataEncoder, injected
// here so this package does not depend on the wire-format package.
type MetadataEncoder interface {
	EncodeMetadata(m Metadata) (string, error)
}

// DBProvider is the default Provider: a join of Store and MetadataStore,
// grounded on OfferProvider::offer in original_source/components/src/offer/db.rs,
// which loads an offer and its related metadata row and materializes the
// two into a single served Offer.
type DBProvider struct {
	Offers    Store
	Metadata  MetadataStore
	Encoder   MetadataEncoder
}

func NewDBProvider(offers Store, metadata MetadataStore, encoder MetadataEncoder) *DBProvider {
	return &DBProvider{Offers: offers, Metadata: metadata, Encoder: encoder}
}

func (p *DBProvider) Offer(ctx context.Context, partition string, id uuid.UUID) (*Offer, error) {
	record, err := p.Offers.GetOffer(ctx, partition, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	meta, err := p.Metadata.GetMetadata(ctx, partition, record.MetadataID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, serviceerr.Internalf("offer.Offer", "offer %s references missing metadata %s", id, record.MetadataID)
	}

	metadataJSON, err := p.Encoder.EncodeMetadata(*meta)
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "offer.Offer", "encoding metadata", err)
	}

	return &Offer{
		Partition:           partition,
		ID:                  record.ID,
		MaxSendable:         record.MaxSendable,
		MinSendable:         record.MinSendable,
		Timestamp:           record.Timestamp,
		Expires:             record.Expires,
		MetadataJSONString: metadataJSON,
		MetadataJSONHash:   sha256.Sum256([]byte(metadataJSON)),
	}, nil
}
