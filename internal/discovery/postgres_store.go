package discovery

import (
	"context"
	"errors"
	"time"

	"lnurl-gateway/internal/serviceerr"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const etagRowID = 1

// uniqueViolation is the PostgreSQL error code for a unique-constraint
// violation.
const uniqueViolation = "23505"

// PostgresStore is the pgx-backed Discovery Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, addr Address) (*Backend, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT name, partitions, weight, enabled, implementation, created_at, updated_at
		FROM discovery_backend WHERE address = $1`, addrBytes(addr))

	var b Backend
	if err := row.Scan(&b.Name, &b.Partitions, &b.Weight, &b.Enabled, &b.Implementation, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, serviceerr.Wrap(serviceerr.Internal, "discovery.Get", "querying backend", err)
	}
	b.Address = addr
	return &b, nil
}

func (s *PostgresStore) GetAll(ctx context.Context, ifETag *uint64) (Backends, error) {
	var etag uint64
	row := s.pool.QueryRow(ctx, `SELECT value FROM discovery_backend_etag WHERE id = $1`, etagRowID)
	if err := row.Scan(&etag); err != nil {
		return Backends{}, serviceerr.Wrap(serviceerr.Internal, "discovery.GetAll", "reading etag", err)
	}

	if ifETag != nil && *ifETag == etag {
		return Backends{ETag: etag}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT address, name, partitions, weight, enabled, implementation, created_at, updated_at
		FROM discovery_backend ORDER BY created_at ASC, address ASC`)
	if err != nil {
		return Backends{}, serviceerr.Wrap(serviceerr.Internal, "discovery.GetAll", "querying all backends", err)
	}
	defer rows.Close()

	list := []Backend{}
	for rows.Next() {
		var b Backend
		var addrBytes []byte
		if err := rows.Scan(&addrBytes, &b.Name, &b.Partitions, &b.Weight, &b.Enabled, &b.Implementation, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return Backends{}, serviceerr.Wrap(serviceerr.Internal, "discovery.GetAll", "scanning backend row", err)
		}
		pk, err := btcec.ParsePubKey(addrBytes)
		if err != nil {
			return Backends{}, serviceerr.Wrap(serviceerr.Internal, "discovery.GetAll", "parsing stored public key", err)
		}
		b.Address = pk
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return Backends{}, serviceerr.Wrap(serviceerr.Internal, "discovery.GetAll", "iterating backend rows", err)
	}

	return Backends{ETag: etag, List: list}, nil
}

func (s *PostgresStore) Post(ctx context.Context, backend Backend) (Address, bool, error) {
	now := time.Now().UTC()
	var inserted bool

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO discovery_backend (address, name, partitions, weight, enabled, implementation, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (address) DO NOTHING`,
			addrBytes(backend.Address), backendName(backend), backend.Partitions, backend.Weight, backend.Enabled, backend.Implementation, now)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return nil
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		inserted = true
		_, err = tx.Exec(ctx, `UPDATE discovery_backend_etag SET value = value + 1 WHERE id = $1`, etagRowID)
		return err
	})
	if err != nil {
		return nil, false, serviceerr.Wrap(serviceerr.Internal, "discovery.Post", "inserting backend", err)
	}
	if !inserted {
		return nil, false, nil
	}
	return backend.Address, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, backend Backend) (bool, error) {
	now := time.Now().UTC()
	future := now.Add(time.Second)
	var created bool

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO discovery_backend (address, name, partitions, weight, enabled, implementation, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (address) DO UPDATE SET
				name = EXCLUDED.name,
				partitions = EXCLUDED.partitions,
				weight = EXCLUDED.weight,
				enabled = EXCLUDED.enabled,
				implementation = EXCLUDED.implementation,
				updated_at = $8`,
			addrBytes(backend.Address), backendName(backend), backend.Partitions, backend.Weight, backend.Enabled, backend.Implementation, now, future)
		if err != nil {
			return err
		}

		var createdAt, updatedAt time.Time
		row := tx.QueryRow(ctx, `SELECT created_at, updated_at FROM discovery_backend WHERE address = $1`, addrBytes(backend.Address))
		if err := row.Scan(&createdAt, &updatedAt); err != nil {
			return err
		}
		created = createdAt.Equal(updatedAt)

		_, err = tx.Exec(ctx, `UPDATE discovery_backend_etag SET value = value + 1 WHERE id = $1`, etagRowID)
		return err
	})
	if err != nil {
		return false, serviceerr.Wrap(serviceerr.Internal, "discovery.Put", "upserting backend", err)
	}
	return created, nil
}

func (s *PostgresStore) Patch(ctx context.Context, patch Patch) (bool, error) {
	var matched bool

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// The WHERE clause's IS DISTINCT FROM guards require a row to
		// actually change value on at least one present field; a patch
		// that only restates the current values (or supplies no fields
		// at all) matches zero rows and must not bump the ETag.
		tag, err := tx.Exec(ctx, `
			UPDATE discovery_backend SET
				name = COALESCE($2, name),
				partitions = COALESCE($3, partitions),
				weight = COALESCE($4, weight),
				enabled = COALESCE($5, enabled),
				implementation = COALESCE($6, implementation),
				updated_at = now()
			WHERE address = $1
			AND (
				($2::text IS NOT NULL AND $2 IS DISTINCT FROM name) OR
				($3::text[] IS NOT NULL AND $3 IS DISTINCT FROM partitions) OR
				($4::int IS NOT NULL AND $4 IS DISTINCT FROM weight) OR
				($5::bool IS NOT NULL AND $5 IS DISTINCT FROM enabled) OR
				($6::bytea IS NOT NULL AND $6 IS DISTINCT FROM implementation)
			)`,
			addrBytes(patch.Address), patch.Name, nullablePartitions(patch.Partitions), patch.Weight, patch.Enabled, nullableBytes(patch.Implementation))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Nothing changed; still report whether the address exists.
			return tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM discovery_backend WHERE address = $1)`,
				addrBytes(patch.Address)).Scan(&matched)
		}
		matched = true
		_, err = tx.Exec(ctx, `UPDATE discovery_backend_etag SET value = value + 1 WHERE id = $1`, etagRowID)
		return err
	})
	if err != nil {
		return false, serviceerr.Wrap(serviceerr.Internal, "discovery.Patch", "patching backend", err)
	}
	return matched, nil
}

func (s *PostgresStore) Delete(ctx context.Context, addr Address) (bool, error) {
	var deleted bool

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM discovery_backend WHERE address = $1`, addrBytes(addr))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		deleted = true
		_, err = tx.Exec(ctx, `UPDATE discovery_backend_etag SET value = value + 1 WHERE id = $1`, etagRowID)
		return err
	})
	if err != nil {
		return false, serviceerr.Wrap(serviceerr.Internal, "discovery.Delete", "deleting backend", err)
	}
	return deleted, nil
}

func addrBytes(addr Address) []byte {
	return addr.SerializeCompressed()
}

func backendName(b Backend) *string {
	return b.Name
}

func nullablePartitions(p []string) any {
	if p == nil {
		return nil
	}
	return p
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
