// Package store provides the live document store behind the dashboard.
//
// # Architecture
//
// DocumentStore is the single contract every backend satisfies:
//
//   - Subscribe: live, ordered snapshots of one collection
//   - Insert / Update / Delete: document writes
//   - Close: release resources and end all subscriptions
//
// Backends share a Feed, which runs one goroutine per subscription. After a
// write the backend calls Feed.Notify and each subscription on that
// collection reloads its query and delivers a fresh Snapshot. A subscription
// buffers at most one snapshot, so a slow consumer always sees the most
// recent state.
//
// # Backends
//
//   - SQLiteStore: modernc.org/sqlite through sqlx, ordered with json_extract
//   - PostgresStore: gorm over PostgreSQL, with a Poller for external writes
//   - MemoryStore: in-process maps for tests and ephemeral runs
//
// # Documents
//
// Document bodies are Fields (map[string]any) stored as JSON. time.Time
// values are written in TimeLayout, a fixed-width UTC format, so ordering by
// a timestamp field is the same in SQL and in process.
//
// # Error Handling
//
//   - ErrNotFound: update or delete of a missing document
//   - ErrInvalidQuery: bad collection name, order field, or direction
//   - ErrClosed: operation on a closed store
//
// # Testing
//
// Use NewMemoryStore() for unit tests and NewSQLiteStore(":memory:") for
// integration tests with real SQLite.
package store
