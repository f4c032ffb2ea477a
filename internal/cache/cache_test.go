package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances manually so TTL decay can be simulated exactly.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(clk *fakeClock) *Cache[string] {
	return New[string](WithClock[string](clk.now))
}

func TestGet_MissingKey(t *testing.T) {
	c := New[string]()

	_, freshness := c.Get("absent", time.Second)
	assert.Equal(t, Miss, freshness)
}

func TestRoundTrip_FreshStaleExpired(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(clk)

	freshTTL := 1000 * time.Millisecond
	staleTTL := 5000 * time.Millisecond
	c.Set("k", "v", freshTTL, staleTTL)

	// Immediate read: fresh.
	got, freshness := c.Get("k", freshTTL)
	require.Equal(t, Fresh, freshness)
	assert.Equal(t, "v", got)

	// 1500 ms elapsed: past fresh window, within stale window.
	clk.advance(1500 * time.Millisecond)
	got, freshness = c.Get("k", freshTTL)
	require.Equal(t, Stale, freshness)
	assert.Equal(t, "v", got, "stale reads return the data unchanged")

	// 6000 ms elapsed total: past stale deadline, entry evicted.
	clk.advance(4500 * time.Millisecond)
	_, freshness = c.Get("k", freshTTL)
	assert.Equal(t, Miss, freshness)
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on read")
}

func TestGet_FreshBoundaryIsExclusive(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(clk)

	c.Set("k", "v", time.Second, 5*time.Second)
	clk.advance(time.Second)

	// Exactly at the fresh TTL the entry is no longer fresh.
	_, freshness := c.Get("k", time.Second)
	assert.Equal(t, Stale, freshness)
}

func TestSet_ReplacesWholesale(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCache(clk)

	c.Set("k", "old", time.Second, 5*time.Second)
	clk.advance(4 * time.Second)
	c.Set("k", "new", time.Second, 5*time.Second)

	got, freshness := c.Get("k", time.Second)
	require.Equal(t, Fresh, freshness, "replacement resets the clock")
	assert.Equal(t, "new", got)
}

func TestDelete(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", time.Second, 5*time.Second)
	c.Delete("k")

	_, freshness := c.Get("k", time.Second)
	assert.Equal(t, Miss, freshness)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int]()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 500; j++ {
				c.Set("shared", n, time.Second, 5*time.Second)
				c.Get("shared", time.Second)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	// Last writer wins; any of the written values is acceptable.
	v, freshness := c.Get("shared", time.Second)
	require.Equal(t, Fresh, freshness)
	assert.GreaterOrEqual(t, v, 0)
	assert.Less(t, v, 8)
}
