package offer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lnurl-gateway/internal/serviceerr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// foreignKeyViolation is the PostgreSQL error code for a foreign-key
// constraint violation.
const foreignKeyViolation = "23503"

const defaultPageLimit = 50

// metadataPayload is the JSONB shape stored in offer_metadata.metadata.
// It is an internal storage encoding, distinct from the LNURL wire
// metadata-array format the lnurlproto package produces from Metadata.
type metadataPayload struct {
	Text       string      `json:"text"`
	LongText   *string     `json:"long_text,omitempty"`
	Image      *imageJSON  `json:"image,omitempty"`
	Identifier *identJSON  `json:"identifier,omitempty"`
}

type imageJSON struct {
	Format string `json:"format"` // "png" or "jpeg"
	Bytes  []byte `json:"bytes"`
}

type identJSON struct {
	Kind  string `json:"kind"` // "text" or "email"
	Email string `json:"email"`
}

func toPayload(m Metadata) metadataPayload {
	p := metadataPayload{Text: m.Text, LongText: m.LongText}
	if m.Image != nil {
		format := "png"
		if m.Image.Format == ImageJPEG {
			format = "jpeg"
		}
		p.Image = &imageJSON{Format: format, Bytes: m.Image.Bytes}
	}
	if m.Identifier != nil {
		kind := "text"
		if m.Identifier.Kind == IdentifierEmail {
			kind = "email"
		}
		p.Identifier = &identJSON{Kind: kind, Email: m.Identifier.Email}
	}
	return p
}

func fromPayload(partition string, id uuid.UUID, p metadataPayload) Metadata {
	m := Metadata{Partition: partition, ID: id, Text: p.Text, LongText: p.LongText}
	if p.Image != nil {
		format := ImagePNG
		if p.Image.Format == "jpeg" {
			format = ImageJPEG
		}
		m.Image = &Image{Format: format, Bytes: p.Image.Bytes}
	}
	if p.Identifier != nil {
		kind := IdentifierText
		if p.Identifier.Kind == "email" {
			kind = IdentifierEmail
		}
		m.Identifier = &Identifier{Kind: kind, Email: p.Identifier.Email}
	}
	return m
}

// PostgresStore is the pgx-backed offer Store and MetadataStore. Unlike
// the Discovery Store it keeps no ETag (offers are not fleet-wide
// cached). The offer Provider is DBProvider, which reads through it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetOffer(ctx context.Context, partition string, id uuid.UUID) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT max_sendable, min_sendable, metadata_id, timestamp, expires
		FROM offer_record WHERE partition = $1 AND id = $2`, partition, id)

	var r Record
	r.Partition, r.ID = partition, id
	if err := row.Scan(&r.MaxSendable, &r.MinSendable, &r.MetadataID, &r.Timestamp, &r.Expires); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetOffer", "querying offer", err)
	}
	return &r, nil
}

func (s *PostgresStore) GetOffers(ctx context.Context, partition string, after *uuid.UUID, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}

	var rows pgx.Rows
	var err error
	if after == nil {
		rows, err = s.pool.Query(ctx, `
			SELECT id, max_sendable, min_sendable, metadata_id, timestamp, expires
			FROM offer_record WHERE partition = $1
			ORDER BY created_at ASC, id ASC LIMIT $2`, partition, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, max_sendable, min_sendable, metadata_id, timestamp, expires
			FROM offer_record WHERE partition = $1
			AND created_at > (SELECT created_at FROM offer_record WHERE partition = $1 AND id = $3)
			ORDER BY created_at ASC, id ASC LIMIT $2`, partition, limit, *after)
	}
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetOffers", "querying offers", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r := Record{Partition: partition}
		if err := rows.Scan(&r.ID, &r.MaxSendable, &r.MinSendable, &r.MetadataID, &r.Timestamp, &r.Expires); err != nil {
			return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetOffers", "scanning offer row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetOffers", "iterating offer rows", err)
	}
	return out, nil
}

func (s *PostgresStore) PostOffer(ctx context.Context, r Record) (bool, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO offer_record (partition, id, max_sendable, min_sendable, metadata_id, timestamp, expires, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (partition, id) DO NOTHING`,
		r.Partition, r.ID, r.MaxSendable, r.MinSendable, r.MetadataID, r.Timestamp, r.Expires, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, serviceerr.New(serviceerr.Downstream, "offer.PostOffer", "metadata does not exist in this partition")
		}
		return false, serviceerr.Wrap(serviceerr.Internal, "offer.PostOffer", "inserting offer", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) PutOffer(ctx context.Context, r Record) (bool, error) {
	now := time.Now().UTC()
	future := now.Add(time.Second)

	var created bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO offer_record (partition, id, max_sendable, min_sendable, metadata_id, timestamp, expires, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			ON CONFLICT (partition, id) DO UPDATE SET
				max_sendable = EXCLUDED.max_sendable,
				min_sendable = EXCLUDED.min_sendable,
				metadata_id = EXCLUDED.metadata_id,
				timestamp = EXCLUDED.timestamp,
				expires = EXCLUDED.expires,
				updated_at = $9`,
			r.Partition, r.ID, r.MaxSendable, r.MinSendable, r.MetadataID, r.Timestamp, r.Expires, now, future)
		if err != nil {
			return err
		}

		var createdAt, updatedAt time.Time
		row := tx.QueryRow(ctx, `SELECT created_at, updated_at FROM offer_record WHERE partition = $1 AND id = $2`, r.Partition, r.ID)
		if err := row.Scan(&createdAt, &updatedAt); err != nil {
			return err
		}
		created = createdAt.Equal(updatedAt)
		return nil
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, serviceerr.New(serviceerr.Downstream, "offer.PutOffer", "metadata does not exist in this partition")
		}
		return false, serviceerr.Wrap(serviceerr.Internal, "offer.PutOffer", "upserting offer", err)
	}
	return created, nil
}

func (s *PostgresStore) DeleteOffer(ctx context.Context, partition string, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM offer_record WHERE partition = $1 AND id = $2`, partition, id)
	if err != nil {
		return false, serviceerr.Wrap(serviceerr.Internal, "offer.DeleteOffer", "deleting offer", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetMetadata(ctx context.Context, partition string, id uuid.UUID) (*Metadata, error) {
	row := s.pool.QueryRow(ctx, `SELECT metadata FROM offer_metadata WHERE partition = $1 AND id = $2`, partition, id)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetMetadata", "querying metadata", err)
	}

	var p metadataPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetMetadata", "decoding stored metadata", err)
	}
	m := fromPayload(partition, id, p)
	return &m, nil
}

func (s *PostgresStore) GetAllMetadata(ctx context.Context, partition string, after *uuid.UUID, limit int) ([]Metadata, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}

	var rows pgx.Rows
	var err error
	if after == nil {
		rows, err = s.pool.Query(ctx, `
			SELECT id, metadata FROM offer_metadata WHERE partition = $1
			ORDER BY created_at ASC, id ASC LIMIT $2`, partition, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, metadata FROM offer_metadata WHERE partition = $1
			AND created_at > (SELECT created_at FROM offer_metadata WHERE partition = $1 AND id = $3)
			ORDER BY created_at ASC, id ASC LIMIT $2`, partition, limit, *after)
	}
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetAllMetadata", "querying metadata", err)
	}
	defer rows.Close()

	var out []Metadata
	for rows.Next() {
		var id uuid.UUID
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetAllMetadata", "scanning metadata row", err)
		}
		var p metadataPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetAllMetadata", "decoding stored metadata", err)
		}
		out = append(out, fromPayload(partition, id, p))
	}
	if err := rows.Err(); err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "offer.GetAllMetadata", "iterating metadata rows", err)
	}
	return out, nil
}

func (s *PostgresStore) PostMetadata(ctx context.Context, m Metadata) (bool, error) {
	raw, err := json.Marshal(toPayload(m))
	if err != nil {
		return false, serviceerr.Wrap(serviceerr.Internal, "offer.PostMetadata", "encoding metadata", err)
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO offer_metadata (partition, id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (partition, id) DO NOTHING`, m.Partition, m.ID, raw, now)
	if err != nil {
		return false, serviceerr.Wrap(serviceerr.Internal, "offer.PostMetadata", "inserting metadata", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) PutMetadata(ctx context.Context, m Metadata) (bool, error) {
	raw, err := json.Marshal(toPayload(m))
	if err != nil {
		return false, serviceerr.Wrap(serviceerr.Internal, "offer.PutMetadata", "encoding metadata", err)
	}

	now := time.Now().UTC()
	future := now.Add(time.Second)
	var created bool

	txErr := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO offer_metadata (partition, id, metadata, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (partition, id) DO UPDATE SET metadata = EXCLUDED.metadata, updated_at = $5`,
			m.Partition, m.ID, raw, now, future)
		if err != nil {
			return err
		}
		var createdAt, updatedAt time.Time
		row := tx.QueryRow(ctx, `SELECT created_at, updated_at FROM offer_metadata WHERE partition = $1 AND id = $2`, m.Partition, m.ID)
		if err := row.Scan(&createdAt, &updatedAt); err != nil {
			return err
		}
		created = createdAt.Equal(updatedAt)
		return nil
	})
	if txErr != nil {
		return false, serviceerr.Wrap(serviceerr.Internal, "offer.PutMetadata", "upserting metadata", txErr)
	}
	return created, nil
}

// DeleteMetadata removes a metadata row. The foreign key on offer_record
// blocks deletion while any offer still references it; the caller sees
// that as a Downstream error, not an internal failure.
func (s *PostgresStore) DeleteMetadata(ctx context.Context, partition string, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM offer_metadata WHERE partition = $1 AND id = $2`, partition, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, serviceerr.New(serviceerr.Downstream, "offer.DeleteMetadata", "metadata is still referenced by an offer")
		}
		return false, serviceerr.Wrap(serviceerr.Internal, "offer.DeleteMetadata", "deleting metadata", err)
	}
	return tag.RowsAffected() > 0, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
