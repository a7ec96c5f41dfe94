// ABOUTME: Tests for the view registry
// ABOUTME: Covers lookup, stream attach/detach, idle cleanup, and capacity eviction

package webui

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/appland/internal/dashboard"
)

func newTestRegistry(t *testing.T, ttl time.Duration, maxViews int) *Registry {
	t.Helper()
	gate := dashboard.NewGate(dashboard.DefaultSecret)
	r := NewRegistry(ttl, maxViews, func() *dashboard.Session {
		return dashboard.NewSession(gate, &recordingWriter{})
	}, nil)
	t.Cleanup(r.Close)
	return r
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := newTestRegistry(t, time.Minute, 0)

	id, session := r.Create()
	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestRegistry_SessionsAreSeparate(t *testing.T) {
	r := newTestRegistry(t, time.Minute, 0)

	_, a := r.Create()
	_, b := r.Create()
	require.True(t, a.AttemptLogin(dashboard.DefaultSecret))
	assert.True(t, a.Admin())
	assert.False(t, b.Admin())
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	r := newTestRegistry(t, time.Minute, 2)

	first, _ := r.Create()
	second, _ := r.Create()

	// Touch first so second becomes the oldest
	_, err := r.Get(first)
	require.NoError(t, err)

	third, _ := r.Create()
	assert.Equal(t, 2, r.Count())

	_, err = r.Get(second)
	assert.ErrorIs(t, err, ErrViewNotFound)
	_, err = r.Get(first)
	assert.NoError(t, err)
	_, err = r.Get(third)
	assert.NoError(t, err)
}

func TestRegistry_DetachRemovesAfterLastStream(t *testing.T) {
	r := newTestRegistry(t, time.Minute, 0)
	id, _ := r.Create()

	_, err := r.Attach(id)
	require.NoError(t, err)
	_, err = r.Attach(id)
	require.NoError(t, err)

	r.Detach(id)
	assert.Equal(t, 1, r.Count())
	r.Detach(id)
	assert.Equal(t, 0, r.Count())

	r.Detach(id) // unknown ids are ignored
	_, err = r.Attach(id)
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestRegistry_CleanupSkipsStreamingViews(t *testing.T) {
	r := newTestRegistry(t, time.Minute, 0)
	clock := &fakeClock{now: time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)}
	r.now = clock.Now

	idle, _ := r.Create()
	streaming, _ := r.Create()
	_, err := r.Attach(streaming)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	r.runCleanup()
	assert.Equal(t, 2, r.Count())

	clock.Advance(time.Minute)
	r.runCleanup()
	assert.Equal(t, 1, r.Count())

	_, err = r.Get(idle)
	assert.ErrorIs(t, err, ErrViewNotFound)
	_, err = r.Get(streaming)
	assert.NoError(t, err)
}

func TestRegistry_CloseTwice(t *testing.T) {
	r := newTestRegistry(t, time.Minute, 0)
	r.Close()
	r.Close()
}
