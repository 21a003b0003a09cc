package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	assert.True(t, rl.Allow("2@1.2.3.4"))
	assert.True(t, rl.Allow("2@1.2.3.4"))
	assert.True(t, rl.Allow("2@1.2.3.4"))
	assert.False(t, rl.Allow("2@1.2.3.4"), "fourth request inside the window is rejected")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("2@1.2.3.4"))
	assert.False(t, rl.Allow("2@1.2.3.4"))
	assert.True(t, rl.Allow("3@1.2.3.4"), "other bidders are unaffected")
	assert.True(t, rl.Allow("2@5.6.7.8"), "same bidder from another address is a fresh key")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	assert.True(t, rl.Allow("2@1.2.3.4"))
	assert.False(t, rl.Allow("2@1.2.3.4"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("2@1.2.3.4"), "window has slid past the first request")
}
