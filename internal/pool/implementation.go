package pool

import (
	"encoding/json"
	"fmt"

	"lnurl-gateway/internal/crypto"
)

// ImplementationKind tags which pool variant an Implementation describes.
type ImplementationKind string

const (
	ClnGrpc    ImplementationKind = "cln_grpc"
	LndGrpc    ImplementationKind = "lnd_grpc"
	RemoteHTTP ImplementationKind = "remote_http"
)

// Implementation is the decoded form of a discovery.Backend's opaque
// Implementation byte slice: the variant tag plus the connection
// parameters and client credentials needed to dial it. Encoded at rest
// as AES-256-GCM ciphertext (internal/crypto) so the Discovery Store
// never holds credentials in the clear.
type Implementation struct {
	Kind ImplementationKind `json:"kind"`

	// CLN gRPC
	Address        string `json:"address,omitempty"`
	ClientCertPath string `json:"client_cert_path,omitempty"`
	ClientKeyPath  string `json:"client_key_path,omitempty"`
	CACertPath     string `json:"ca_cert_path,omitempty"`
	Rune           string `json:"rune,omitempty"`

	// LND gRPC
	TLSCertPath string `json:"tls_cert_path,omitempty"`
	MacaroonHex string `json:"macaroon_hex,omitempty"`
	Network     string `json:"network,omitempty"`

	// Remote HTTP gateway
	BaseURL     string `json:"base_url,omitempty"`
	BearerToken string `json:"bearer_token,omitempty"`
}

// EncodeImplementation serializes and encrypts an Implementation for
// storage in discovery.Backend.Implementation.
func EncodeImplementation(impl Implementation, masterKey []byte) ([]byte, error) {
	raw, err := json.Marshal(impl)
	if err != nil {
		return nil, fmt.Errorf("encoding implementation descriptor: %w", err)
	}
	ciphertext, err := crypto.Encrypt(string(raw), masterKey)
	if err != nil {
		return nil, fmt.Errorf("encrypting implementation descriptor: %w", err)
	}
	return []byte(ciphertext), nil
}

// DecodeImplementation reverses EncodeImplementation.
func DecodeImplementation(data []byte, masterKey []byte) (Implementation, error) {
	plaintext, err := crypto.Decrypt(string(data), masterKey)
	if err != nil {
		return Implementation{}, fmt.Errorf("decrypting implementation descriptor: %w", err)
	}
	var impl Implementation
	if err := json.Unmarshal([]byte(plaintext), &impl); err != nil {
		return Implementation{}, fmt.Errorf("decoding implementation descriptor: %w", err)
	}
	return impl, nil
}
