// ABOUTME: Document store contract and data types for appland persistence
// ABOUTME: Defines Query, Document, Snapshot and the DocumentStore interface

package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidQuery is returned when a query names an invalid collection or field
var ErrInvalidQuery = errors.New("invalid query")

// ErrClosed is returned by operations on a store that has been closed
var ErrClosed = errors.New("store closed")

// Collection and field names are restricted so they can be embedded in
// JSON paths without escaping.
var (
	collectionRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)
	fieldRegex      = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,63}$`)
)

// Direction is the sort direction of a live query
type Direction string

// Direction constants
const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Query selects a collection and the field its snapshots are ordered by.
// An empty OrderBy orders documents by insertion.
type Query struct {
	Collection string
	OrderBy    string
	Direction  Direction
}

// Validate checks the collection name, order field, and direction.
func (q Query) Validate() error {
	if !collectionRegex.MatchString(q.Collection) {
		return fmt.Errorf("%w: collection %q", ErrInvalidQuery, q.Collection)
	}
	if q.OrderBy != "" && !fieldRegex.MatchString(q.OrderBy) {
		return fmt.Errorf("%w: order field %q", ErrInvalidQuery, q.OrderBy)
	}
	switch q.Direction {
	case "", Ascending, Descending:
	default:
		return fmt.Errorf("%w: direction %q", ErrInvalidQuery, q.Direction)
	}
	return nil
}

// descending reports whether the query sorts in descending order.
func (q Query) descending() bool {
	return q.Direction == Descending
}

// Document is a single stored record: a store-assigned ID and its fields
type Document struct {
	ID     string
	Fields Fields
}

// Snapshot is an ordered point-in-time view of a collection
type Snapshot struct {
	Query     Query
	Documents []Document
	ReadAt    time.Time
}

// Empty reports whether the snapshot holds no documents.
func (s Snapshot) Empty() bool {
	return len(s.Documents) == 0
}

// DocumentStore is the contract every backend satisfies.
//
// Subscribe delivers the current snapshot immediately and an updated one after
// every successful write to the collection. Writes return once the backend has
// accepted them; callers that want fire-and-forget semantics run them on their
// own goroutine.
type DocumentStore interface {
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error

	// Close releases any resources held by the store and ends all subscriptions
	Close() error
}

func validateCollection(collection string) error {
	return Query{Collection: collection}.Validate()
}
