package rest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryRateLimiter_RemoveIdle(t *testing.T) {
	rl := newInMemoryRateLimiter(1, 1)
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	// Age one client past the cutoff.
	rl.mu.Lock()
	rl.clients["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.removeIdle(time.Now().Add(-30 * time.Minute))

	rl.mu.Lock()
	_, staleKept := rl.clients["10.0.0.1"]
	_, freshKept := rl.clients["10.0.0.2"]
	rl.mu.Unlock()
	assert.False(t, staleKept)
	assert.True(t, freshKept)

	// An expired client starts over with a fresh bucket.
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestInMemoryRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := newInMemoryRateLimiter(1, 1)
	rl.cleanup(time.Millisecond)

	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/health", nil)
	r.RemoteAddr = "192.0.2.7:4123"
	assert.Equal(t, "192.0.2.7", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}
