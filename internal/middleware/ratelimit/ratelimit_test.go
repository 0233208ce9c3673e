package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMinute int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	rl.now = clock.now
	return rl, clock
}

func TestLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("a"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients are independent")

	clock.advance(time.Minute)
	assert.True(t, rl.Allow("a"), "window resets")
	assert.Equal(t, int64(1), rl.GetMetrics().TotalHits)
}

func TestLimiter_WindowDoesNotSlide(t *testing.T) {
	rl, clock := newTestLimiter(2)

	require.True(t, rl.Allow("a"))
	clock.advance(40 * time.Second)
	require.True(t, rl.Allow("a"))
	clock.advance(30 * time.Second)
	// 70s after the first request the window has reset
	assert.True(t, rl.Allow("a"))
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(10)
	rl.Allow("old")
	clock.advance(11 * time.Minute)
	rl.Allow("new")

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestLimiter_RunStopsOnCancel(t *testing.T) {
	rl := NewLimiter(Config{CleanupInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestMiddleware_OnlyLimitsListedMethods(t *testing.T) {
	rl, _ := newTestLimiter(1)
	h := rl.Middleware(
		func(*http.Request) string { return "ip" },
		nil,
		http.MethodPost,
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(method string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/grants", nil))
		return rr
	}

	assert.Equal(t, http.StatusOK, send(http.MethodPost).Code)
	limited := send(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, send(http.MethodGet).Code)
}
