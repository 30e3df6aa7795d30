package lnurlproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQRPNG_ProducesPNG(t *testing.T) {
	png, err := EncodeQRPNG("LNURL1DP68GURN8GHJ7", 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte{0x89, 'P', 'N', 'G'}))
}
