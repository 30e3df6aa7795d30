package pool

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescription_ResolveHash(t *testing.T) {
	t.Run("direct has no hash", func(t *testing.T) {
		assert.Equal(t, [32]byte{}, Direct("hello").ResolveHash())
	})

	t.Run("direct into hash hashes the text", func(t *testing.T) {
		want := sha256.Sum256([]byte("hello"))
		assert.Equal(t, want, DirectIntoHash("hello").ResolveHash())
	})

	t.Run("hash passes through unchanged", func(t *testing.T) {
		var h [32]byte
		h[0] = 0xAB
		assert.Equal(t, h, HashDescription(h).ResolveHash())
	})
}

func TestHashDescription_HasDescriptionHashKind(t *testing.T) {
	// HashDescription is tagged DescriptionHash, the kind that a backend
	// whose node cannot accept a raw hash (internal/pool/cln) rejects
	// rather than silently falling back to a different binding.
	d := HashDescription([32]byte{1})
	assert.Equal(t, DescriptionHash, d.Kind)
}
