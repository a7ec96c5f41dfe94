// ABOUTME: Live snapshot feed shared by all document store backends
// ABOUTME: Reloads a subscription's query on change and delivers the newest snapshot

package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// loadFunc reads the current ordered contents of a query from a backend.
type loadFunc func(ctx context.Context, q Query) ([]Document, error)

// Subscription is a live, cancellable stream of snapshots for one query.
// At most one snapshot is buffered: a newer snapshot replaces an unread one.
type Subscription struct {
	id     string
	query  Query
	ch     chan Snapshot
	wake   chan struct{}
	forced atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Query returns the query this subscription follows.
func (s *Subscription) Query() Query { return s.query }

// C returns the snapshot channel. It is closed after Cancel or when the
// subscribing context ends.
func (s *Subscription) C() <-chan Snapshot { return s.ch }

// Cancel stops the subscription. Once Cancel returns no further snapshots are
// delivered and the channel is closed.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
	for range s.ch {
	}
}

// Done is closed when the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// notify wakes the subscription's loader. force requests delivery even when
// the reloaded snapshot equals the last one delivered.
func (s *Subscription) notify(force bool) {
	if force {
		s.forced.Store(true)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// deliver hands snap to the consumer, replacing any unread snapshot.
func (s *Subscription) deliver(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Feed tracks the live subscriptions of one store. Backends call Notify after
// each successful write; pollers call Refresh to pick up external changes.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscription // collection -> subID -> sub
	closed      bool
	logger      *slog.Logger
}

// NewFeed creates a feed. Pass nil logger for default.
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		subscribers: make(map[string]map[string]*Subscription),
		logger:      logger.With("component", "feed"),
	}
}

// Subscribe registers a subscription for q and starts delivering snapshots
// produced by load. The subscription ends when ctx is cancelled, when Cancel
// is called, or when the feed is closed.
func (f *Feed) Subscribe(ctx context.Context, q Query, load loadFunc) (*Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Direction == "" {
		q.Direction = Ascending
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		id:     uuid.New().String(),
		query:  q,
		ch:     make(chan Snapshot, 1),
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	if _, ok := f.subscribers[q.Collection]; !ok {
		f.subscribers[q.Collection] = make(map[string]*Subscription)
	}
	f.subscribers[q.Collection][sub.id] = sub
	f.mu.Unlock()

	f.logger.Debug("subscriber added",
		"collection", q.Collection,
		"sub_id", sub.id)

	go f.run(subCtx, sub, load)
	return sub, nil
}

// run is the per-subscription loop: load, deliver if changed, wait for a wake.
func (f *Feed) run(ctx context.Context, sub *Subscription, load loadFunc) {
	defer close(sub.ch)
	defer close(sub.done)
	defer f.remove(sub)

	var last string
	force := true
	for {
		docs, err := load(ctx, sub.query)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("failed to load snapshot",
				"collection", sub.query.Collection,
				"sub_id", sub.id,
				"error", err)
		default:
			fp := fingerprint(docs)
			if force || fp != last {
				last = fp
				sub.deliver(Snapshot{Query: sub.query, Documents: docs, ReadAt: time.Now()})
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-sub.wake:
			force = sub.forced.Swap(false)
		}
	}
}

// Notify wakes every subscription on collection and forces a delivery.
func (f *Feed) Notify(collection string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sub := range f.subscribers[collection] {
		sub.notify(true)
	}
}

// Refresh wakes every subscription; snapshots are delivered only if changed.
func (f *Feed) Refresh() {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, subs := range f.subscribers {
		for _, sub := range subs {
			sub.notify(false)
		}
	}
}

// Count returns the number of active subscriptions.
func (f *Feed) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, subs := range f.subscribers {
		n += len(subs)
	}
	return n
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs, ok := f.subscribers[sub.query.Collection]
	if !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(f.subscribers, sub.query.Collection)
	}

	f.logger.Debug("subscriber removed",
		"collection", sub.query.Collection,
		"sub_id", sub.id)
}

// Close ends every subscription and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	var subs []*Subscription
	for _, byID := range f.subscribers {
		for _, sub := range byID {
			subs = append(subs, sub)
		}
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}
	f.logger.Debug("feed closed")
}

// fingerprint identifies a snapshot's content for change detection.
func fingerprint(docs []Document) string {
	data, err := json.Marshal(docs)
	if err != nil {
		return ""
	}
	return string(data)
}
