// ABOUTME: Local "initialized" marker that suppresses re-seeding of default apps
// ABOUTME: Defines the Marker interface and an in-memory implementation

// Package marker persists the single flag recording that default apps were seeded.
package marker

import (
	"sync"
	"time"
)

// Marker is a persistent boolean flag scoped to one client.
// Reads and writes are not coordinated across processes.
type Marker interface {
	IsSet() (bool, error)
	Set() error
	Clear() error
}

// MemoryMarker is a Marker that lives for the life of the process.
type MemoryMarker struct {
	mu    sync.Mutex
	setAt time.Time
	set   bool
}

// NewMemoryMarker creates an unset marker.
func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{}
}

// IsSet reports whether Set has been called since the last Clear.
func (m *MemoryMarker) IsSet() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set, nil
}

// Set marks the client as initialized.
func (m *MemoryMarker) Set() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = true
	m.setAt = time.Now()
	return nil
}

// Clear resets the marker.
func (m *MemoryMarker) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = false
	m.setAt = time.Time{}
	return nil
}

// SetAt returns when the marker was set, or the zero time.
func (m *MemoryMarker) SetAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setAt
}
