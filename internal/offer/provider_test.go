package offer

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOfferStore struct {
	records map[uuid.UUID]Record
}

func (f *fakeOfferStore) GetOffer(_ context.Context, partition string, id uuid.UUID) (*Record, error) {
	r, ok := f.records[id]
	if !ok || r.Partition != partition {
		return nil, nil
	}
	return &r, nil
}
func (f *fakeOfferStore) GetOffers(context.Context, string, *uuid.UUID, int) ([]Record, error) {
	return nil, nil
}
func (f *fakeOfferStore) PostOffer(context.Context, Record) (bool, error)   { return true, nil }
func (f *fakeOfferStore) PutOffer(context.Context, Record) (bool, error)    { return true, nil }
func (f *fakeOfferStore) DeleteOffer(context.Context, string, uuid.UUID) (bool, error) {
	return true, nil
}

type fakeMetadataStore struct {
	metadata map[uuid.UUID]Metadata
}

func (f *fakeMetadataStore) GetMetadata(_ context.Context, partition string, id uuid.UUID) (*Metadata, error) {
	m, ok := f.metadata[id]
	if !ok || m.Partition != partition {
		return nil, nil
	}
	return &m, nil
}
func (f *fakeMetadataStore) GetAllMetadata(context.Context, string, *uuid.UUID, int) ([]Metadata, error) {
	return nil, nil
}
func (f *fakeMetadataStore) PostMetadata(context.Context, Metadata) (bool, error) { return true, nil }
func (f *fakeMetadataStore) PutMetadata(context.Context, Metadata) (bool, error)  { return true, nil }
func (f *fakeMetadataStore) DeleteMetadata(context.Context, string, uuid.UUID) (bool, error) {
	return true, nil
}

type fakeEncoder struct{}

func (fakeEncoder) EncodeMetadata(m Metadata) (string, error) {
	return `[["text/plain","` + m.Text + `"]]`, nil
}

func TestDBProvider_Offer(t *testing.T) {
	metaID := uuid.New()
	offerID := uuid.New()

	offers := &fakeOfferStore{records: map[uuid.UUID]Record{
		offerID: {
			Partition:   "default",
			ID:          offerID,
			MaxSendable: 5000,
			MinSendable: 1000,
			MetadataID:  metaID,
			Timestamp:   time.Unix(0, 0),
		},
	}}
	metadata := &fakeMetadataStore{metadata: map[uuid.UUID]Metadata{
		metaID: {Partition: "default", ID: metaID, Text: "hello"},
	}}

	provider := NewDBProvider(offers, metadata, fakeEncoder{})

	o, err := provider.Offer(context.Background(), "default", offerID)
	require.NoError(t, err)
	require.NotNil(t, o)

	wantJSON := `[["text/plain","hello"]]`
	assert.Equal(t, wantJSON, o.MetadataJSONString)
	assert.Equal(t, sha256.Sum256([]byte(wantJSON)), o.MetadataJSONHash)
	assert.Equal(t, uint64(5000), o.MaxSendable)
}

func TestDBProvider_OfferNotFound(t *testing.T) {
	provider := NewDBProvider(&fakeOfferStore{records: map[uuid.UUID]Record{}}, &fakeMetadataStore{}, fakeEncoder{})

	o, err := provider.Offer(context.Background(), "default", uuid.New())
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestDBProvider_OfferMissingMetadataIsInternalError(t *testing.T) {
	offerID := uuid.New()
	offers := &fakeOfferStore{records: map[uuid.UUID]Record{
		offerID: {Partition: "default", ID: offerID, MetadataID: uuid.New()},
	}}
	provider := NewDBProvider(offers, &fakeMetadataStore{metadata: map[uuid.UUID]Metadata{}}, fakeEncoder{})

	_, err := provider.Offer(context.Background(), "default", offerID)
	require.Error(t, err)
}
