package offer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no expiry never expires", func(t *testing.T) {
		r := Record{}
		assert.False(t, r.Expired(now))
	})

	t.Run("past expiry has expired", func(t *testing.T) {
		past := now.Add(-time.Minute)
		r := Record{Expires: &past}
		assert.True(t, r.Expired(now))
	})

	t.Run("future expiry has not expired", func(t *testing.T) {
		future := now.Add(time.Minute)
		r := Record{Expires: &future}
		assert.False(t, r.Expired(now))
	})
}

func TestOfferExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	o := Offer{Expires: &past}
	assert.True(t, o.Expired(now))
}
