package lnurlproto

import "encoding/json"

// Invoice is the LNURL-Pay invoice response (LUD-06 step 2). Routes is
// always serialized as an empty array; this gateway never suggests routing
// hints of its own.
type Invoice struct {
	PR     string            `json:"pr"`
	Routes []json.RawMessage `json:"routes"`
}

func NewInvoice(paymentRequest string) Invoice {
	return Invoice{PR: paymentRequest, Routes: []json.RawMessage{}}
}
