// ABOUTME: Registry of open views, one dashboard session per page load
// ABOUTME: Evicts views when their stream closes, when idle past the TTL, or when over capacity

package webui

import (
	"container/list"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/appland/internal/dashboard"
)

// ErrViewNotFound is returned for a view that was never created or was evicted
var ErrViewNotFound = errors.New("view not found")

// viewEntry stores a session and its position in the recency list.
type viewEntry struct {
	session  *dashboard.Session
	lastSeen time.Time
	streams  int
	element  *list.Element
}

// Registry tracks open views. Uses a doubly-linked list ordered by last use
// (oldest at front) for O(1) eviction.
type Registry struct {
	mu         sync.Mutex
	views      map[string]*viewEntry
	order      *list.List
	ttl        time.Duration
	maxViews   int
	newSession func() *dashboard.Session
	now        func() time.Time
	logger     *slog.Logger
	done       chan struct{}
	closed     bool
}

// NewRegistry creates a registry. A background goroutine periodically
// removes idle views. maxViews of zero means unlimited.
func NewRegistry(ttl time.Duration, maxViews int, newSession func() *dashboard.Session, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		views:      make(map[string]*viewEntry),
		order:      list.New(),
		ttl:        ttl,
		maxViews:   maxViews,
		newSession: newSession,
		now:        time.Now,
		logger:     logger.With("component", "views"),
		done:       make(chan struct{}),
	}
	go r.cleanup()
	return r
}

// Create opens a new view and returns its ID and session. If the registry
// is full the least recently used view is evicted.
func (r *Registry) Create() (string, *dashboard.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxViews > 0 && len(r.views) >= r.maxViews {
		r.evictOldest()
	}

	id := uuid.New().String()
	session := r.newSession()
	r.views[id] = &viewEntry{
		session:  session,
		lastSeen: r.now(),
		element:  r.order.PushBack(id),
	}

	r.logger.Debug("view created", "view_id", id, "views", len(r.views))
	return id, session
}

// Get returns the session for id and marks the view as used.
func (r *Registry) Get(id string) (*dashboard.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	entry.lastSeen = r.now()
	r.order.MoveToBack(entry.element)
	return entry.session, nil
}

// Attach records an open stream for id. A view with an open stream is never
// considered idle.
func (r *Registry) Attach(id string) (*dashboard.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	entry.streams++
	entry.lastSeen = r.now()
	r.order.MoveToBack(entry.element)
	return entry.session, nil
}

// Detach records a closed stream. The view is removed once its last stream
// closes; a reconnecting page gets a new view.
func (r *Registry) Detach(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.views[id]
	if !ok {
		return
	}
	entry.streams--
	if entry.streams <= 0 {
		r.removeLocked(id, entry)
		r.logger.Debug("view closed", "view_id", id)
	}
}

// Count returns the number of open views.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// evictOldest removes the least recently used view. Must be called with mu held.
func (r *Registry) evictOldest() {
	front := r.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	r.removeLocked(id, r.views[id])
	r.logger.Debug("view evicted for capacity", "view_id", id)
}

func (r *Registry) removeLocked(id string, entry *viewEntry) {
	if entry != nil {
		r.order.Remove(entry.element)
	}
	delete(r.views, id)
}

// cleanup runs in a background goroutine, periodically removing idle views.
func (r *Registry) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runCleanup()
		case <-r.done:
			return
		}
	}
}

// runCleanup removes views idle longer than the TTL that have no open stream.
func (r *Registry) runCleanup() {
	if r.ttl <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, entry := range r.views {
		if entry.streams == 0 && now.Sub(entry.lastSeen) > r.ttl {
			r.removeLocked(id, entry)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("idle views removed", "count", removed, "views", len(r.views))
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		close(r.done)
		r.closed = true
	}
}
