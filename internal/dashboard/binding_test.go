// ABOUTME: Tests for the live sync binding and first-run seeding
// ABOUTME: Uses the in-memory store and marker for end-to-end runs

package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/appland/internal/marker"
	"github.com/2389/appland/internal/store"
)

func snapshotOf(entries ...AppEntry) store.Snapshot {
	snap := store.Snapshot{Query: AppsQuery, ReadAt: time.Now()}
	for _, e := range entries {
		f := e.insertFields()
		snap.Documents = append(snap.Documents, store.Document{ID: e.ID, Fields: f})
	}
	return snap
}

// brokenMarker fails every read
type brokenMarker struct{ setCalls int }

func (b *brokenMarker) IsSet() (bool, error) { return false, errors.New("disk gone") }
func (b *brokenMarker) Set() error           { b.setCalls++; return nil }
func (b *brokenMarker) Clear() error         { return nil }

func TestBinding_ApplyKeepsSnapshotOrder(t *testing.T) {
	w := &recordingWriter{}
	b := NewBinding(store.NewMemoryStore(), marker.NewMemoryMarker(), w, nil)

	// Deliberately not sorted by createdAt: the binding must not re-sort
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	snap := snapshotOf(
		AppEntry{ID: "b", Name: "B", CreatedAt: base.Add(time.Hour)},
		AppEntry{ID: "a", Name: "A", CreatedAt: base},
		AppEntry{ID: "c", Name: "C", Icon: "nope", CreatedAt: base.Add(2 * time.Hour)},
	)
	b.Apply(context.Background(), snap)

	apps := b.Apps()
	require.Len(t, apps, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{apps[0].ID, apps[1].ID, apps[2].ID})
	assert.Empty(t, w.Calls())

	found, ok := b.Find("c")
	require.True(t, ok)
	assert.Equal(t, "C", found.Name)
	_, ok = b.Find("zzz")
	assert.False(t, ok)
}

func TestBinding_SeedsOnceOnEmptySnapshot(t *testing.T) {
	w := &recordingWriter{}
	m := marker.NewMemoryMarker()
	b := NewBinding(store.NewMemoryStore(), m, w, nil)

	b.Apply(context.Background(), snapshotOf())

	calls := w.Calls()
	require.Len(t, calls, 4)
	for i, want := range DefaultApps() {
		assert.Equal(t, "insert", calls[i].Op)
		assert.Equal(t, want.Name, calls[i].Entry.Name)
		assert.False(t, calls[i].Entry.CreatedAt.IsZero())
		if i > 0 {
			assert.True(t, calls[i].Entry.CreatedAt.After(calls[i-1].Entry.CreatedAt))
		}
	}
	set, _ := m.IsSet()
	assert.True(t, set)

	// Marker set: an empty snapshot clears the list instead of seeding again
	b.Apply(context.Background(), snapshotOf(AppEntry{ID: "x"}))
	b.Apply(context.Background(), snapshotOf())
	assert.Len(t, w.Calls(), 4)
	assert.Empty(t, b.Apps())
}

func TestBinding_NoSeedWhenMarkerSet(t *testing.T) {
	w := &recordingWriter{}
	m := marker.NewMemoryMarker()
	require.NoError(t, m.Set())
	b := NewBinding(store.NewMemoryStore(), m, w, nil)

	b.Apply(context.Background(), snapshotOf())
	assert.Empty(t, w.Calls())
}

func TestBinding_MarkerReadErrorCountsAsUnset(t *testing.T) {
	w := &recordingWriter{}
	m := &brokenMarker{}
	b := NewBinding(store.NewMemoryStore(), m, w, nil)

	b.Apply(context.Background(), snapshotOf())
	assert.Len(t, w.Calls(), 4)
	assert.Equal(t, 1, m.setCalls)
}

func TestBinding_RunSeedsAndFollowsStore(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	w := NewStoreWriter(s, time.Second, nil)
	b := NewBinding(s, marker.NewMemoryMarker(), w, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return len(b.Apps()) == 4 }, 2*time.Second, 10*time.Millisecond)
	apps := b.Apps()
	for i, want := range DefaultApps() {
		assert.Equal(t, want.Name, apps[i].Name, "seeded apps keep their order")
		assert.NotEmpty(t, apps[i].ID)
	}

	// A write elsewhere reaches the list through the subscription
	w.Delete(ctx, apps[0].ID)
	require.Eventually(t, func() bool { return len(b.Apps()) == 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	w.Wait()
}

func TestBinding_WatchReceivesLists(t *testing.T) {
	b := NewBinding(store.NewMemoryStore(), marker.NewMemoryMarker(), &recordingWriter{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	lists := b.Watch(ctx)
	assert.Equal(t, 1, b.Watchers())

	b.Apply(context.Background(), snapshotOf(AppEntry{ID: "one"}))
	b.Apply(context.Background(), snapshotOf(AppEntry{ID: "one"}, AppEntry{ID: "two"}))

	// Only the latest list is pending
	got := <-lists
	assert.Len(t, got, 2)

	cancel()
	require.Eventually(t, func() bool { return b.Watchers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBinding_SecondRunRejected(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	b := NewBinding(s, marker.NewMemoryMarker(), &recordingWriter{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)
	require.Eventually(t, b.running.Load, time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, b.Run(ctx), ErrAlreadyRunning)
}

func TestStoreWriter_LogsFailuresWithoutPanicking(t *testing.T) {
	s := store.NewMemoryStore()
	w := NewStoreWriter(s, time.Second, nil)

	w.Update(context.Background(), "missing", AppEntry{Name: "x"})
	w.Delete(context.Background(), "missing")
	w.Wait()

	require.NoError(t, s.Close())
	w.Insert(context.Background(), AppEntry{Name: "after close"})
	w.Wait()
}

func TestStoreWriter_OutlivesRequestContext(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	w := NewStoreWriter(s, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Insert(ctx, AppEntry{Name: "kept", CreatedAt: time.Now()})
	w.Wait()

	sub, err := s.Subscribe(context.Background(), AppsQuery)
	require.NoError(t, err)
	defer sub.Cancel()
	snap := <-sub.C()
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "kept", EntryFromDocument(snap.Documents[0]).Name)
}

func TestBinding_SyncedAfterFirstList(t *testing.T) {
	b := NewBinding(store.NewMemoryStore(), marker.NewMemoryMarker(), &recordingWriter{}, nil)
	assert.False(t, b.Synced())

	// Seeding does not count as a list
	b.Apply(context.Background(), snapshotOf())
	assert.False(t, b.Synced())

	b.Apply(context.Background(), snapshotOf(AppEntry{ID: "a"}))
	assert.True(t, b.Synced())
}

// readyThenCancelled hands out a subscription whose first snapshot is
// already buffered, and cancels the binding's context before returning it.
type readyThenCancelled struct {
	store.DocumentStore
	t      *testing.T
	cancel context.CancelFunc
}

func (r *readyThenCancelled) Subscribe(_ context.Context, q store.Query) (*store.Subscription, error) {
	sub, err := r.DocumentStore.Subscribe(context.Background(), q)
	require.NoError(r.t, err)
	require.Eventually(r.t, func() bool { return len(sub.C()) == 1 }, time.Second, time.Millisecond)
	r.cancel()
	return sub, nil
}

func TestBinding_NoApplyAfterStop(t *testing.T) {
	// select picks randomly between ready cases, so repeat
	for i := 0; i < 20; i++ {
		s := store.NewMemoryStore()
		ctx, cancel := context.WithCancel(context.Background())
		w := &recordingWriter{}
		m := marker.NewMemoryMarker()
		b := NewBinding(&readyThenCancelled{DocumentStore: s, t: t, cancel: cancel}, m, w, nil)

		require.NoError(t, b.Run(ctx))

		assert.Empty(t, w.Calls(), "no seeding once stopped")
		set, _ := m.IsSet()
		assert.False(t, set)
		require.NoError(t, s.Close())
	}
}
