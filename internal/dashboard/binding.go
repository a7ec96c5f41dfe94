// ABOUTME: Live Sync Binding between the apps collection and the in-memory list
// ABOUTME: Seeds the default apps on first run and replaces the list on every snapshot

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/appland/internal/marker"
	"github.com/2389/appland/internal/store"
)

// ErrAlreadyRunning is returned when Run is called while a subscription is open
var ErrAlreadyRunning = errors.New("binding already running")

// AppsQuery is the live query the dashboard follows
var AppsQuery = store.Query{
	Collection: CollectionName,
	OrderBy:    FieldCreatedAt,
	Direction:  store.Ascending,
}

// Binding keeps the current app list in step with the store.
type Binding struct {
	store  store.DocumentStore
	marker marker.Marker
	writer Writer
	logger *slog.Logger
	now    func() time.Time

	running atomic.Bool
	synced  atomic.Bool
	hub     *hub[[]AppEntry]

	mu       sync.RWMutex
	apps     []AppEntry
	lastSeed time.Time
}

// NewBinding creates a binding. Pass nil logger for default.
func NewBinding(s store.DocumentStore, m marker.Marker, w Writer, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "binding")
	return &Binding{
		store:  s,
		marker: m,
		writer: w,
		logger: logger,
		now:    time.Now,
		hub:    newHub[[]AppEntry](logger),
	}
}

// Run opens the subscription and applies snapshots until ctx is cancelled.
// The subscription is cancelled before Run returns, so no snapshot is applied
// afterwards. Watchers are closed on return.
func (b *Binding) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer b.running.Store(false)

	// On failure watchers stay open on the stale list.
	sub, err := b.store.Subscribe(ctx, AppsQuery)
	if err != nil {
		b.logger.Error("failed to subscribe to apps", "error", err)
		return fmt.Errorf("subscribing to apps: %w", err)
	}
	defer b.hub.close()
	defer sub.Cancel()

	b.logger.Info("live sync started", "sub_id", sub.ID())
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("live sync stopped")
			return nil
		case snap, ok := <-sub.C():
			if !ok {
				b.logger.Warn("apps subscription ended")
				return nil
			}
			// Both cases can be ready at once; a cancelled run applies nothing more.
			if ctx.Err() != nil {
				b.logger.Info("live sync stopped")
				return nil
			}
			b.Apply(ctx, snap)
		}
	}
}

// Apply handles one snapshot. An empty snapshot seeds the defaults when the
// marker was never set; any other snapshot replaces the list wholesale.
func (b *Binding) Apply(ctx context.Context, snap store.Snapshot) {
	if snap.Empty() && !b.markerSet() {
		b.seed(ctx)
		return
	}

	entries := EntriesFromSnapshot(snap)

	b.mu.Lock()
	b.apps = entries
	b.mu.Unlock()
	b.synced.Store(true)

	b.logger.Debug("apps replaced", "count", len(entries))
	b.hub.publish(cloneEntries(entries))
}

func (b *Binding) markerSet() bool {
	set, err := b.marker.IsSet()
	if err != nil {
		b.logger.Warn("failed to read seed marker, treating as unset", "error", err)
		return false
	}
	return set
}

// seed issues one insert per default app and sets the marker without waiting
// for the inserts. A failed insert still leaves the marker set.
func (b *Binding) seed(ctx context.Context) {
	defaults := DefaultApps()
	for _, app := range defaults {
		app.CreatedAt = b.seedTime()
		b.writer.Insert(ctx, app)
	}

	if err := b.marker.Set(); err != nil {
		b.logger.Warn("failed to set seed marker", "error", err)
	}
	b.logger.Info("seeded default apps", "count", len(defaults))
}

// seedTime returns a fresh timestamp strictly after the previous one so the
// defaults keep their listed order.
func (b *Binding) seedTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now()
	if !t.After(b.lastSeed) {
		t = b.lastSeed.Add(time.Microsecond)
	}
	b.lastSeed = t
	return t
}

// Synced reports whether a snapshot has replaced the list at least once.
func (b *Binding) Synced() bool {
	return b.synced.Load()
}

// Apps returns a copy of the current list in store order.
func (b *Binding) Apps() []AppEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneEntries(b.apps)
}

// Find returns the entry with id from the current list.
func (b *Binding) Find(id string) (AppEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.apps {
		if e.ID == id {
			return e, true
		}
	}
	return AppEntry{}, false
}

// Watch returns a channel receiving every new list until ctx ends.
func (b *Binding) Watch(ctx context.Context) <-chan []AppEntry {
	return b.hub.watch(ctx)
}

// Watchers returns the number of active watchers.
func (b *Binding) Watchers() int {
	return b.hub.count()
}

func cloneEntries(entries []AppEntry) []AppEntry {
	if entries == nil {
		return []AppEntry{}
	}
	return append([]AppEntry(nil), entries...)
}
