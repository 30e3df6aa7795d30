package lnurlproto

import (
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// lnurlHRP is the human-readable part LUD-01 mandates for the bech32
// encoding of an LNURL.
const lnurlHRP = "lnurl"

// EncodeBech32 encodes a raw offer URL as a bech32 "lnurl1..." string.
// Wallets scanning the resulting QR code expect the conventional
// uppercase rendering.
func EncodeBech32(rawURL string) (string, error) {
	converted, err := bech32.ConvertBits([]byte(rawURL), 8, 5, true)
	if err != nil {
		return "", err
	}
	encoded, err := bech32.Encode(lnurlHRP, converted)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(encoded), nil
}

// DecodeBech32 reverses EncodeBech32, returning the original URL string.
func DecodeBech32(encoded string) (string, error) {
	hrp, data, err := bech32.Decode(strings.ToLower(encoded))
	if err != nil {
		return "", err
	}
	if hrp != lnurlHRP {
		return "", errors.New("unexpected bech32 human-readable part")
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}
	return string(converted), nil
}
