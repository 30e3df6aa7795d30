package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceIssuedMessage_ToJSON(t *testing.T) {
	msg := &InvoiceIssuedMessage{
		Partition:       "default",
		OfferID:         uuid.New(),
		BackendAddress:  "02abc",
		AmountMsat:      50000,
		DescriptionHash: "deadbeef",
		IssuedAt:        time.Now(),
	}

	data, err := msg.ToJSON()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "default", result["partition"])
	assert.Equal(t, float64(50000), result["amount_msat"])
}

func TestFromJSONInvoiceIssued_RoundTrip(t *testing.T) {
	msg := &InvoiceIssuedMessage{
		Partition:      "default",
		OfferID:        uuid.New(),
		BackendAddress: "02abc",
		AmountMsat:     50000,
		IssuedAt:       time.Now().UTC(),
	}
	data, err := msg.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSONInvoiceIssued(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Partition, decoded.Partition)
	assert.Equal(t, msg.OfferID, decoded.OfferID)
	assert.Equal(t, msg.AmountMsat, decoded.AmountMsat)
}

func TestFromJSONInvoiceIssued_InvalidJSON(t *testing.T) {
	msg, err := FromJSONInvoiceIssued([]byte("not json"))
	assert.Error(t, err)
	assert.Nil(t, msg)
}

func TestInvoiceIssuedMessage_Validate(t *testing.T) {
	tests := []struct {
		name        string
		msg         InvoiceIssuedMessage
		expectError string
	}{
		{
			name:        "missing partition",
			msg:         InvoiceIssuedMessage{OfferID: uuid.New(), BackendAddress: "02abc", AmountMsat: 1},
			expectError: "partition is required",
		},
		{
			name:        "missing offer id",
			msg:         InvoiceIssuedMessage{Partition: "default", BackendAddress: "02abc", AmountMsat: 1},
			expectError: "offer_id is required",
		},
		{
			name:        "missing backend address",
			msg:         InvoiceIssuedMessage{Partition: "default", OfferID: uuid.New(), AmountMsat: 1},
			expectError: "backend_address is required",
		},
		{
			name:        "zero amount",
			msg:         InvoiceIssuedMessage{Partition: "default", OfferID: uuid.New(), BackendAddress: "02abc"},
			expectError: "amount_msat must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestInvoiceFailedMessage_ToJSON_RoundTrip(t *testing.T) {
	msg := &InvoiceFailedMessage{
		Partition:  "default",
		OfferID:    uuid.New(),
		AmountMsat: 1000,
		Source:     "upstream",
		Reason:     "no healthy backend",
		FailedAt:   time.Now().UTC(),
	}
	data, err := msg.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSONInvoiceFailed(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Source, decoded.Source)
	assert.Equal(t, msg.Reason, decoded.Reason)
}

func TestInvoiceFailedMessage_Validate_MissingFields(t *testing.T) {
	msg := InvoiceFailedMessage{}
	err := msg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition is required")
}
