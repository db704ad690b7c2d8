// ABOUTME: Tests for the TTL key cache used to memoize reachability answers
// ABOUTME: Uses an injected clock to validate expiry, eviction, forgetting, and sweeping

package dedupe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration, size int) (*Cache, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	c := New(ttl, size, time.Hour, WithClock(clock.Now))
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_CheckUnseen(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	assert.False(t, c.Check("never-seen"))
}

func TestCache_MarkThenCheck(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	c.Mark("0xabc")
	assert.True(t, c.Check("0xabc"))
	assert.False(t, c.Check("0xdef"))
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)
	c.Mark("k")

	clock.Advance(59 * time.Second)
	assert.True(t, c.Check("k"))

	clock.Advance(time.Second)
	assert.False(t, c.Check("k"))
}

func TestCache_MarkRefreshesTimestamp(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)
	c.Mark("k")
	clock.Advance(40 * time.Second)
	c.Mark("k")
	clock.Advance(40 * time.Second)
	assert.True(t, c.Check("k"))
}

func TestCache_EvictionOrder(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 3)
	c.Mark("first")
	c.Mark("second")
	c.Mark("third")
	c.Mark("fourth")

	assert.False(t, c.Check("first"), "oldest key should be evicted")
	assert.True(t, c.Check("second"))
	assert.True(t, c.Check("fourth"))
	assert.Equal(t, 3, c.Len())
}

func TestCache_Forget(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 3)
	c.Mark("k")
	c.Forget("k")
	c.Forget("missing")
	assert.False(t, c.Check("k"))
	assert.Equal(t, 0, c.Len())
}

func TestCache_Sweep(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)
	c.Mark("a")
	c.Mark("b")
	clock.Advance(2 * time.Minute)
	c.Mark("c")

	c.sweep()
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Check("c"))
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10, 0)
	c.Close()
	c.Close()
}
