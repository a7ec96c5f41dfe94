// ABOUTME: Fire-and-forget dispatch of app entry writes to the document store
// ABOUTME: Failures are logged and never surfaced; the next snapshot is the source of truth

package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/appland/internal/store"
)

// defaultWriteTimeout bounds a single store write issued from the UI
const defaultWriteTimeout = 10 * time.Second

// Writer issues app entry writes without waiting for their outcome.
type Writer interface {
	Insert(ctx context.Context, entry AppEntry)
	Update(ctx context.Context, id string, entry AppEntry)
	Delete(ctx context.Context, id string)
}

// StoreWriter runs each write on its own goroutine against a DocumentStore.
// Writes outlive the request that issued them.
type StoreWriter struct {
	store   store.DocumentStore
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewStoreWriter creates a writer. A non-positive timeout uses the default;
// pass nil logger for default.
func NewStoreWriter(s store.DocumentStore, timeout time.Duration, logger *slog.Logger) *StoreWriter {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreWriter{
		store:   s,
		timeout: timeout,
		logger:  logger.With("component", "writer"),
	}
}

// Insert creates a document for entry. entry.ID is ignored.
func (w *StoreWriter) Insert(ctx context.Context, entry AppEntry) {
	w.dispatch(ctx, "insert", "", func(ctx context.Context) error {
		id, err := w.store.Insert(ctx, CollectionName, entry.insertFields())
		if err == nil {
			w.logger.Debug("app inserted", "id", id, "name", entry.Name)
		}
		return err
	})
}

// Update writes name, url, icon and color of entry to document id.
func (w *StoreWriter) Update(ctx context.Context, id string, entry AppEntry) {
	w.dispatch(ctx, "update", id, func(ctx context.Context) error {
		return w.store.Update(ctx, CollectionName, id, entry.contentFields())
	})
}

// Delete removes document id.
func (w *StoreWriter) Delete(ctx context.Context, id string) {
	w.dispatch(ctx, "delete", id, func(ctx context.Context) error {
		return w.store.Delete(ctx, CollectionName, id)
	})
}

// Wait blocks until every issued write has finished.
func (w *StoreWriter) Wait() {
	w.wg.Wait()
}

func (w *StoreWriter) dispatch(ctx context.Context, op, id string, fn func(context.Context) error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			w.logger.Warn("store write failed",
				"op", op,
				"id", id,
				"error", err)
		}
	}()
}
