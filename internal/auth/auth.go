// Package auth verifies the bearer tokens required on every admin HTTP
// surface (discovery and offer management): a JWT signed with an
// operator-held private key, checked here against its configured public
// counterpart. There is no login flow or token issuance in this
// package — tokens are minted out of band by the operator's own tooling.
package auth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Algorithm selects which JWT signing algorithm a Verifier accepts.
type Algorithm int

const (
	ES256 Algorithm = iota
	EdDSA
)

// Verifier checks bearer tokens against one configured public key.
type Verifier struct {
	algorithm Algorithm
	ecKey     *ecdsa.PublicKey
	edKey     ed25519.PublicKey
}

// NewES256Verifier builds a Verifier accepting only ES256-signed tokens.
func NewES256Verifier(pub *ecdsa.PublicKey) *Verifier {
	return &Verifier{algorithm: ES256, ecKey: pub}
}

// NewEdDSAVerifier builds a Verifier accepting only EdDSA-signed tokens.
func NewEdDSAVerifier(pub ed25519.PublicKey) *Verifier {
	return &Verifier{algorithm: EdDSA, edKey: pub}
}

var (
	errMissingHeader = errors.New("missing bearer token")
	errMalformed     = errors.New("malformed authorization header")
)

// bearerToken extracts the token from a standard "Bearer <token>" header.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errMalformed
	}
	return strings.TrimPrefix(header, prefix), nil
}

// Verify validates the bearer token carried in the request's Authorization
// header against the configured public key and signing algorithm.
func (v *Verifier) Verify(r *http.Request) error {
	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return err
	}

	keyFunc := func(t *jwt.Token) (interface{}, error) {
		switch v.algorithm {
		case ES256:
			if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return v.ecKey, nil
		case EdDSA:
			if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return v.edKey, nil
		default:
			return nil, errors.New("verifier has no configured algorithm")
		}
	}

	parsed, err := jwt.Parse(token, keyFunc)
	if err != nil {
		return fmt.Errorf("invalid bearer token: %w", err)
	}
	if !parsed.Valid {
		return errors.New("bearer token failed validation")
	}
	return nil
}

// Middleware wraps next, rejecting any request that fails Verify with
// 401 Unauthorized before it reaches the handler.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := v.Verify(r); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
