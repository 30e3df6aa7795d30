//go:build integration

package offer

import (
	"context"
	"testing"
	"time"

	"lnurl-gateway/internal/database"
	"lnurl-gateway/internal/serviceerr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOfferStore(t *testing.T) *PostgresStore {
	t.Helper()
	db := database.SetupTestDB(t)
	database.CleanupTestDB(t, db)
	t.Cleanup(func() { database.CleanupTestDB(t, db) })
	return NewPostgresStore(db.Pool())
}

func TestPostgresStore_MetadataRoundTrip(t *testing.T) {
	store := setupOfferStore(t)
	ctx := context.Background()

	longText := "a longer description"
	m := Metadata{
		Partition:  "default",
		ID:         uuid.New(),
		Text:       "hello",
		LongText:   &longText,
		Image:      &Image{Format: ImagePNG, Bytes: []byte{0x00, 0x01}},
		Identifier: &Identifier{Kind: IdentifierEmail, Email: "pay@example.com"},
	}

	created, err := store.PostMetadata(ctx, m)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := store.GetMetadata(ctx, m.Partition, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.Text, got.Text)
	assert.Equal(t, *m.LongText, *got.LongText)
	assert.Equal(t, m.Image.Bytes, got.Image.Bytes)
	assert.Equal(t, m.Identifier.Email, got.Identifier.Email)

	// duplicate post is a no-op, not an error
	created, err = store.PostMetadata(ctx, m)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestPostgresStore_OfferRequiresExistingMetadata(t *testing.T) {
	store := setupOfferStore(t)
	ctx := context.Background()

	r := Record{
		Partition:   "default",
		ID:          uuid.New(),
		MaxSendable: 1000,
		MinSendable: 1,
		MetadataID:  uuid.New(), // never inserted
		Timestamp:   time.Now().UTC(),
	}

	_, err := store.PostOffer(ctx, r)
	require.Error(t, err)
	assert.True(t, serviceerr.Is(err, serviceerr.Downstream))
}

func TestPostgresStore_DeleteMetadataBlockedWhileReferenced(t *testing.T) {
	store := setupOfferStore(t)
	ctx := context.Background()

	m := Metadata{Partition: "default", ID: uuid.New(), Text: "hi"}
	_, err := store.PostMetadata(ctx, m)
	require.NoError(t, err)

	r := Record{
		Partition:   "default",
		ID:          uuid.New(),
		MaxSendable: 1000,
		MinSendable: 1,
		MetadataID:  m.ID,
		Timestamp:   time.Now().UTC(),
	}
	_, err = store.PostOffer(ctx, r)
	require.NoError(t, err)

	_, err = store.DeleteMetadata(ctx, m.Partition, m.ID)
	require.Error(t, err)
	assert.True(t, serviceerr.Is(err, serviceerr.Downstream))

	deleted, err := store.DeleteOffer(ctx, r.Partition, r.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteMetadata(ctx, m.Partition, m.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestPostgresStore_PutMetadataReportsCreateVsUpdate(t *testing.T) {
	store := setupOfferStore(t)
	ctx := context.Background()

	m := Metadata{Partition: "default", ID: uuid.New(), Text: "hi"}

	created, err := store.PutMetadata(ctx, m)
	require.NoError(t, err)
	assert.True(t, created, "first Put of a new address must report a create")

	m.Text = "updated"
	created, err = store.PutMetadata(ctx, m)
	require.NoError(t, err)
	assert.False(t, created, "Put of an existing row must report an update")

	got, err := store.GetMetadata(ctx, m.Partition, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "updated", got.Text)
}

func TestPostgresStore_OffersPagination(t *testing.T) {
	store := setupOfferStore(t)
	ctx := context.Background()

	m := Metadata{Partition: "default", ID: uuid.New(), Text: "hi"}
	_, err := store.PostMetadata(ctx, m)
	require.NoError(t, err)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		r := Record{
			Partition:   "default",
			ID:          uuid.New(),
			MaxSendable: 1000,
			MinSendable: 1,
			MetadataID:  m.ID,
			Timestamp:   time.Now().UTC(),
		}
		_, err := store.PostOffer(ctx, r)
		require.NoError(t, err)
		ids = append(ids, r.ID)
		time.Sleep(10 * time.Millisecond) // ensure distinct created_at ordering
	}

	page, err := store.GetOffers(ctx, "default", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	rest, err := store.GetOffers(ctx, "default", &page[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[2], rest[0].ID)
}
