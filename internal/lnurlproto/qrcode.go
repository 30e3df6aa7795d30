package lnurlproto

import "github.com/skip2/go-qrcode"

// EncodeQRPNG renders content (typically a bech32-encoded offer URL) as
// a PNG QR code of the given pixel size.
func EncodeQRPNG(content string, size int) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, size)
}
