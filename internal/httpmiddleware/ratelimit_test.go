package httpmiddleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustion(t *testing.T) {
	now := time.Now()
	l := NewTokenBucket(3, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1", now), "request %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1", now))

	// Other clients are unaffected.
	assert.True(t, l.Allow("10.0.0.2", now))
}

func TestTokenBucketRefill(t *testing.T) {
	now := time.Now()
	l := NewTokenBucket(1, 60) // one token per second

	assert.True(t, l.Allow("k", now))
	assert.False(t, l.Allow("k", now))
	assert.True(t, l.Allow("k", now.Add(2*time.Second)))
}

func TestZeroCapacityFallsBackToRate(t *testing.T) {
	l := NewTokenBucket(0, 5)
	now := time.Now()
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("k", now))
	}
	assert.False(t, l.Allow("k", now))
}
