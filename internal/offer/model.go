// Package offer persists LNURL-Pay offers and their metadata, enforces
// referential integrity between them, and composes the two into the
// materialized Offer the LNURL-Pay HTTP surface serves.
package offer

import (
	"time"

	"github.com/google/uuid"
)

// Record is a persisted offer (spec §3 OfferRecord).
type Record struct {
	Partition  string
	ID         uuid.UUID
	MaxSendable uint64
	MinSendable uint64
	MetadataID  uuid.UUID
	Timestamp   time.Time
	Expires     *time.Time
}

// Expired reports whether the offer is past its expiry instant.
func (r Record) Expired(now time.Time) bool {
	return r.Expires != nil && now.After(*r.Expires)
}

// ImageFormat is the image encoding of OfferMetadata's optional image.
type ImageFormat int

const (
	ImagePNG ImageFormat = iota
	ImageJPEG
)

// Image is an optional profile image attached to offer metadata.
type Image struct {
	Format ImageFormat
	Bytes  []byte
}

// IdentifierKind distinguishes the two LNURL metadata identifier tags.
type IdentifierKind int

const (
	IdentifierText IdentifierKind = iota
	IdentifierEmail
)

// Identifier is the optional payee identifier attached to offer metadata.
type Identifier struct {
	Kind  IdentifierKind
	Email string
}

// Metadata is a persisted metadata row (spec §3 OfferMetadata).
type Metadata struct {
	Partition  string
	ID         uuid.UUID
	Text       string
	LongText   *string
	Image      *Image
	Identifier *Identifier
}

// Offer is the materialized LNURL-Pay offer (spec §3): a Record plus its
// metadata-array JSON encoding and that exact string's SHA-256 hash,
// never persisted, always derived at read time.
type Offer struct {
	Partition         string
	ID                uuid.UUID
	MaxSendable       uint64
	MinSendable       uint64
	Timestamp         time.Time
	Expires           *time.Time
	MetadataJSONString string
	MetadataJSONHash   [32]byte
}

func (o Offer) Expired(now time.Time) bool {
	return o.Expires != nil && now.After(*o.Expires)
}
