package lnurlproto

// ErrorStatus is always "ERROR" for LNURL error envelopes; LUD-01 defines
// no other status value.
type ErrorStatus string

const StatusError ErrorStatus = "ERROR"

// Error is the JSON envelope LNURL wallets expect on a failed request.
type Error struct {
	Status ErrorStatus `json:"status"`
	Reason string      `json:"reason"`
}

func NewError(reason string) Error {
	return Error{Status: StatusError, Reason: reason}
}
