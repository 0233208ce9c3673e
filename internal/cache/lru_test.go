package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, size int, ttl time.Duration) (*LRUCache[int], *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](size, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute)
	c.Set("a", 1)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute)
	var evicted []string
	c.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_ExpiryIsSliding(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("a", 1)

	clock.Advance(50 * time.Second)
	_, ok := c.Get("a")
	require.True(t, ok)

	clock.Advance(50 * time.Second)
	_, ok = c.Get("a")
	require.True(t, ok, "Get should extend the entry's lifetime")

	clock.Advance(61 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	var evicted int
	c.OnEvict(func(string, int) { evicted++ })

	c.Set("a", 1)
	c.Set("b", 2)
	clock.Advance(30 * time.Second)
	c.Set("c", 3)
	clock.Advance(45 * time.Second)

	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_SnapshotSkipsExpired(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("a", 1)
	clock.Advance(45 * time.Second)
	c.Set("b", 2)
	clock.Advance(30 * time.Second)

	assert.Equal(t, map[string]int{"b": 2}, c.Snapshot())
	assert.Equal(t, 2, c.Size(), "Snapshot must not evict")
}

func TestManager_Run(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("a", 1)
	clock.Advance(2 * time.Minute)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 1, m.CleanOnce())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Run(ctx, time.Hour), context.Canceled)
}
