// Package lnurlproto implements the LNURL-Pay wire format: the offer
// document, its metadata-array encoding, the invoice response, the error
// envelope, and the bech32/QR encodings used to hand the offer URL to
// a wallet.
package lnurlproto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"

	"lnurl-gateway/internal/offer"
)

const (
	metadataTypeText       = "text/plain"
	metadataTypeLongText   = "text/long-desc"
	metadataTypePNGImage   = "image/png;base64"
	metadataTypeJPEGImage  = "image/jpeg;base64"
	metadataTypeIdentifier = "text/identifier"
	metadataTypeEmail      = "text/email"
)

// OfferMetadata is the sparse set of metadata attached to an offer,
// (de)serialized as a JSON array of [type, value] string tuples rather
// than an object, per LUD-06. Unknown tags are skipped on decode; the
// "text/plain" entry is mandatory.
type OfferMetadata struct {
	Text       string
	LongText   *string
	Image      *offer.Image
	Identifier *offer.Identifier
}

// NewOfferMetadata adapts a persisted offer.Metadata row to its wire form.
func NewOfferMetadata(m offer.Metadata) OfferMetadata {
	return OfferMetadata{Text: m.Text, LongText: m.LongText, Image: m.Image, Identifier: m.Identifier}
}

func (m OfferMetadata) MarshalJSON() ([]byte, error) {
	entries := make([][2]string, 0, 4)
	entries = append(entries, [2]string{metadataTypeText, m.Text})

	if m.LongText != nil {
		entries = append(entries, [2]string{metadataTypeLongText, *m.LongText})
	}

	if m.Image != nil {
		tag := metadataTypePNGImage
		if m.Image.Format == offer.ImageJPEG {
			tag = metadataTypeJPEGImage
		}
		entries = append(entries, [2]string{tag, base64.StdEncoding.EncodeToString(m.Image.Bytes)})
	}

	if m.Identifier != nil {
		tag := metadataTypeIdentifier
		if m.Identifier.Kind == offer.IdentifierEmail {
			tag = metadataTypeEmail
		}
		entries = append(entries, [2]string{tag, m.Identifier.Email})
	}

	return json.Marshal(entries)
}

func (m *OfferMetadata) UnmarshalJSON(data []byte) error {
	var raw [][2]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var text *string
	for _, entry := range raw {
		switch entry[0] {
		case metadataTypeText:
			v := entry[1]
			text = &v
		case metadataTypeLongText:
			v := entry[1]
			m.LongText = &v
		case metadataTypePNGImage:
			b, err := base64.StdEncoding.DecodeString(entry[1])
			if err != nil {
				return fmt.Errorf("invalid base64 PNG data: %w", err)
			}
			m.Image = &offer.Image{Format: offer.ImagePNG, Bytes: b}
		case metadataTypeJPEGImage:
			b, err := base64.StdEncoding.DecodeString(entry[1])
			if err != nil {
				return fmt.Errorf("invalid base64 JPEG data: %w", err)
			}
			m.Image = &offer.Image{Format: offer.ImageJPEG, Bytes: b}
		case metadataTypeIdentifier:
			// text/identifier carries a plain-text identifier, which need
			// not be a valid email address; only text/email is parsed as
			// one.
			m.Identifier = &offer.Identifier{Kind: offer.IdentifierText, Email: entry[1]}
		case metadataTypeEmail:
			addr, err := mail.ParseAddress(entry[1])
			if err != nil {
				return fmt.Errorf("invalid email address: %w", err)
			}
			m.Identifier = &offer.Identifier{Kind: offer.IdentifierEmail, Email: addr.Address}
		default:
			// unknown metadata type, skip it
		}
	}

	if text == nil {
		return errors.New("missing required 'text/plain' metadata")
	}
	m.Text = *text
	return nil
}

// MetadataEncoder implements offer.MetadataEncoder by producing the exact
// JSON string a served offer's metadata_json_hash must be the SHA-256 of.
type MetadataEncoder struct{}

func (MetadataEncoder) EncodeMetadata(m offer.Metadata) (string, error) {
	b, err := json.Marshal(NewOfferMetadata(m))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
