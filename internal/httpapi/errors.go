// Package httpapi exposes the gateway's three HTTP surfaces: the public
// LNURL-Pay surface wallets call, and the bearer-authenticated Discovery
// and Offer admin surfaces operators use to manage the fleet.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"lnurl-gateway/internal/invoice"
	"lnurl-gateway/internal/lnurlproto"
	"lnurl-gateway/internal/serviceerr"

	"go.uber.org/zap"
)

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeLNURLError writes an LNURL-flavored error envelope at the given
// HTTP status. Per spec §6.1's endpoint table, the invoice endpoint
// reports real 400/404 status codes (not LUD-01's always-200 convention)
// so load-balancer and client error handling can branch on transport
// status without parsing the JSON body.
func writeLNURLError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, lnurlproto.NewError(reason))
}

// lnurlStatusFor maps an Issue error to the HTTP status spec §6.1 and §8
// scenario 2/3 require: 404 for an absent/expired offer or an unserved
// partition, 400 for any other Downstream failure (e.g. amount out of
// range), and the generic classification mapping otherwise.
func lnurlStatusFor(err error) int {
	if errors.Is(err, invoice.ErrNotFound) {
		return http.StatusNotFound
	}
	if serviceerr.Is(err, serviceerr.Downstream) {
		return http.StatusBadRequest
	}
	return statusFor(err)
}

// statusFor maps a classified error to the HTTP status an admin surface
// reports. Downstream errors distinguish not-found from bad-request by
// message content only where the caller has already done that check;
// this default mapping is the fallback for errors it hasn't inspected.
func statusFor(err error) int {
	switch {
	case serviceerr.Is(err, serviceerr.Downstream):
		return http.StatusBadRequest
	case serviceerr.Is(err, serviceerr.Internal):
		return http.StatusInternalServerError
	case serviceerr.Is(err, serviceerr.Upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the curated, caller-facing text for err: a
// *serviceerr.Error's Message field, never its wrapped Cause, so backend
// addresses and credentials captured in Cause never reach an HTTP
// response.
func publicMessage(err error) string {
	var se *serviceerr.Error
	if ok := errorsAs(err, &se); ok {
		return se.Message
	}
	return "internal error"
}

func errorsAs(err error, target **serviceerr.Error) bool {
	for err != nil {
		if se, ok := err.(*serviceerr.Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// writeAdminError logs the full error (including cause) and writes the
// curated public message with the status statusFor derives from its
// classification.
func writeAdminError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	logger.Warn(op, zap.Error(err))
	http.Error(w, publicMessage(err), statusFor(err))
}
