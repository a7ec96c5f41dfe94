// ABOUTME: In-memory fan-out of the latest value to watchers
// ABOUTME: Each watcher holds at most one pending value; newer values replace unread ones

package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// hub publishes values of type T to every watcher. Only the latest value
// matters, so a slow watcher skips intermediate ones instead of blocking.
type hub[T any] struct {
	mu       sync.RWMutex
	watchers map[string]chan T // subID -> ch
	closed   bool
	logger   *slog.Logger
}

func newHub[T any](logger *slog.Logger) *hub[T] {
	return &hub[T]{
		watchers: make(map[string]chan T),
		logger:   logger,
	}
}

// watch registers a watcher. The channel is closed when ctx is cancelled or
// the hub is closed.
func (h *hub[T]) watch(ctx context.Context) <-chan T {
	subID := uuid.New().String()
	ch := make(chan T, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	h.watchers[subID] = ch
	h.mu.Unlock()

	h.logger.Debug("watcher added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		h.unwatch(subID)
	}()

	return ch
}

// publish hands v to every watcher without blocking.
func (h *hub[T]) publish(v T) {
	// Sends happen under the read lock so unwatch cannot close a channel mid-send
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.watchers {
		for sent := false; !sent; {
			select {
			case ch <- v:
				sent = true
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
	}
}

func (h *hub[T]) unwatch(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.watchers[subID]
	if !ok {
		return
	}
	delete(h.watchers, subID)
	close(ch)

	h.logger.Debug("watcher removed", "sub_id", subID)
}

func (h *hub[T]) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// close closes every watcher channel and rejects new watchers.
func (h *hub[T]) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for subID, ch := range h.watchers {
		close(ch)
		delete(h.watchers, subID)
	}
}
