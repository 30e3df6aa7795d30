// Package queue defines the typed JSON envelopes published to the invoice
// issuance event stream: an audit trail of terminal invoice outcomes,
// independent of the synchronous request path, adapted from the
// FundCardMessage/MonitorTransactionMessage envelope idiom.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InvoiceIssuedMessage records a successful invoice issuance.
type InvoiceIssuedMessage struct {
	Partition       string    `json:"partition"`
	OfferID         uuid.UUID `json:"offer_id"`
	BackendAddress  string    `json:"backend_address"`
	AmountMsat      uint64    `json:"amount_msat"`
	DescriptionHash string    `json:"description_hash"`
	IssuedAt        time.Time `json:"issued_at"`
}

// ToJSON serializes the InvoiceIssuedMessage to JSON bytes.
func (m *InvoiceIssuedMessage) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice issued message: %w", err)
	}
	return data, nil
}

// FromJSONInvoiceIssued deserializes JSON bytes into an InvoiceIssuedMessage
// and validates it.
func FromJSONInvoiceIssued(data []byte) (*InvoiceIssuedMessage, error) {
	msg := &InvoiceIssuedMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invoice issued message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Validate checks if the InvoiceIssuedMessage has all required fields with
// valid values.
func (m *InvoiceIssuedMessage) Validate() error {
	if m.Partition == "" {
		return errors.New("partition is required")
	}
	if m.OfferID == uuid.Nil {
		return errors.New("offer_id is required")
	}
	if m.BackendAddress == "" {
		return errors.New("backend_address is required")
	}
	if m.AmountMsat == 0 {
		return errors.New("amount_msat must be greater than 0")
	}
	return nil
}

// InvoiceFailedMessage records a terminal invoice issuance failure (either
// the retry budget was exhausted or a downstream error was returned
// immediately).
type InvoiceFailedMessage struct {
	Partition  string    `json:"partition"`
	OfferID    uuid.UUID `json:"offer_id"`
	AmountMsat uint64    `json:"amount_msat"`
	Source     string    `json:"source"` // "downstream", "upstream", or "internal"
	Reason     string    `json:"reason"`
	FailedAt   time.Time `json:"failed_at"`
}

// ToJSON serializes the InvoiceFailedMessage to JSON bytes.
func (m *InvoiceFailedMessage) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice failed message: %w", err)
	}
	return data, nil
}

// FromJSONInvoiceFailed deserializes JSON bytes into an InvoiceFailedMessage
// and validates it.
func FromJSONInvoiceFailed(data []byte) (*InvoiceFailedMessage, error) {
	msg := &InvoiceFailedMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invoice failed message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Validate checks if the InvoiceFailedMessage has all required fields with
// valid values.
func (m *InvoiceFailedMessage) Validate() error {
	if m.Partition == "" {
		return errors.New("partition is required")
	}
	if m.OfferID == uuid.Nil {
		return errors.New("offer_id is required")
	}
	if m.Source == "" {
		return errors.New("source is required")
	}
	if m.Reason == "" {
		return errors.New("reason is required")
	}
	return nil
}
