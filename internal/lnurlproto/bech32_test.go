package lnurlproto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBech32_RoundTrip(t *testing.T) {
	url := "https://example.com/lnurl-pay?id=abc123"

	encoded, err := EncodeBech32(url)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "LNURL1"))

	decoded, err := DecodeBech32(encoded)
	require.NoError(t, err)
	assert.Equal(t, url, decoded)
}

func TestDecodeBech32_RejectsWrongHRP(t *testing.T) {
	encoded, err := EncodeBech32("https://example.com")
	require.NoError(t, err)

	_, err = DecodeBech32(strings.Replace(strings.ToLower(encoded), "lnurl1", "other1", 1))
	assert.Error(t, err)
}
