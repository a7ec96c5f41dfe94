// ABOUTME: SQLite implementation of DocumentStore using modernc.org/sqlite and sqlx
// ABOUTME: Stores JSON document bodies and orders snapshots with json_extract

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements DocumentStore using SQLite
type SQLiteStore struct {
	db     *sqlx.DB
	feed   *Feed
	logger *slog.Logger
}

// documentRow is the scan target for snapshot queries
type documentRow struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store", "backend", "sqlite")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection serializes writers and keeps :memory: databases coherent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		feed:   NewFeed(logger),
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			UNIQUE(collection, id),
			CHECK (json_valid(data))
		);

		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close ends all subscriptions and closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	s.feed.Close()
	return s.db.Close()
}

// Subscribe opens a live subscription on q.
func (s *SQLiteStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	return s.feed.Subscribe(ctx, q, s.load)
}

// Insert stores a new document and returns its generated ID.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	data, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, collection, id, data, now, now); err != nil {
		return "", fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("inserted document", "collection", collection, "id", id)
	s.feed.Notify(collection)
	return id, nil
}

// Update merges fields into an existing document.
// Returns ErrNotFound if the document doesn't exist.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored string
	err = tx.GetContext(ctx, &stored,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying document: %w", err)
	}

	merged, err := mergeFields(stored, fields)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		merged, time.Now().UTC().Format(time.RFC3339Nano), collection, id)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}

	s.logger.Debug("updated document", "collection", collection, "id", id)
	s.feed.Notify(collection)
	return nil
}

// Delete removes a document.
// Returns ErrNotFound if the document doesn't exist.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted document", "collection", collection, "id", id)
	s.feed.Notify(collection)
	return nil
}

// load reads the ordered contents of a collection.
func (s *SQLiteStore) load(ctx context.Context, q Query) ([]Document, error) {
	dir := "ASC"
	if q.descending() {
		dir = "DESC"
	}

	var (
		rows []documentRow
		err  error
	)
	if q.OrderBy == "" {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT id, data FROM documents WHERE collection = ? ORDER BY seq `+dir,
			q.Collection)
	} else {
		// Direction is one of two literals and the path is a bound parameter
		err = s.db.SelectContext(ctx, &rows,
			`SELECT id, data FROM documents WHERE collection = ?
			 ORDER BY json_extract(data, ?) `+dir+`, seq `+dir,
			q.Collection, "$."+q.OrderBy)
	}
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		fields, err := decodeFields(row.Data)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", row.ID, err)
		}
		docs = append(docs, Document{ID: row.ID, Fields: fields})
	}
	return docs, nil
}
