// ABOUTME: In-memory DocumentStore implementation for tests and ephemeral runs
// ABOUTME: Keeps JSON-encoded bodies so value types match the SQL backends

package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type memoryDoc struct {
	data string
	seq  int64
}

// MemoryStore is an in-memory DocumentStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryDoc // collection -> id -> doc
	seq         int64
	closed      bool
	feed        *Feed
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memoryDoc),
		feed:        NewFeed(slog.Default().With("store", "memory")),
	}
}

// Subscribe opens a live subscription on q.
func (m *MemoryStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	return m.feed.Subscribe(ctx, q, m.load)
}

// Insert stores a new document and returns its generated ID.
func (m *MemoryStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	data, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]*memoryDoc)
		m.collections[collection] = docs
	}
	id := uuid.New().String()
	m.seq++
	docs[id] = &memoryDoc{data: data, seq: m.seq}
	m.mu.Unlock()

	m.feed.Notify(collection)
	return id, nil
}

// Update merges fields into an existing document.
func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	doc, ok := m.collections[collection][id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	merged, err := mergeFields(doc.data, fields)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	doc.data = merged
	m.mu.Unlock()

	m.feed.Notify(collection)
	return nil
}

// Delete removes a document.
func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	docs := m.collections[collection]
	if _, ok := docs[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(docs, id)
	m.mu.Unlock()

	m.feed.Notify(collection)
	return nil
}

// Close ends all subscriptions. Further calls return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.feed.Close()
	return nil
}

func (m *MemoryStore) load(ctx context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[q.Collection]
	items := make([]sequenced, 0, len(docs))
	for id, d := range docs {
		fields, err := decodeFields(d.data)
		if err != nil {
			return nil, err
		}
		items = append(items, sequenced{doc: Document{ID: id, Fields: fields}, seq: d.seq})
	}
	return sortDocuments(items, q), nil
}
