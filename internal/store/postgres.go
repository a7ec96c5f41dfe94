// ABOUTME: PostgreSQL implementation of DocumentStore using gorm
// ABOUTME: Keeps JSON bodies in a text column and polls for writes made by other processes

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// documentRecord is the gorm model for the documents table
type documentRecord struct {
	Seq        int64  `gorm:"primaryKey;autoIncrement"`
	Collection string `gorm:"not null;uniqueIndex:idx_documents_collection_doc"`
	DocID      string `gorm:"column:doc_id;not null;uniqueIndex:idx_documents_collection_doc"`
	Data       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName pins the table name independent of gorm's pluralization
func (documentRecord) TableName() string { return "documents" }

// PostgresStore implements DocumentStore on PostgreSQL.
type PostgresStore struct {
	db     *gorm.DB
	feed   *Feed
	poller *Poller
	logger *slog.Logger
}

// NewPostgresStore connects to dsn, migrates the schema, and starts a poller
// that refreshes subscriptions every pollInterval. A non-positive interval
// disables polling, so only writes made through this store are observed.
func NewPostgresStore(dsn string, pollInterval time.Duration) (*PostgresStore, error) {
	log := slog.Default().With("component", "store", "backend", "postgres")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&documentRecord{}); err != nil {
		closeGorm(db)
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	s := &PostgresStore{
		db:     db,
		feed:   NewFeed(log),
		logger: log,
	}
	if pollInterval > 0 {
		s.poller = NewPoller(s.feed, pollInterval, log)
		s.poller.Start()
	}

	log.Info("PostgreSQL store initialized", "poll_interval", pollInterval)
	return s, nil
}

// Close stops polling, ends all subscriptions, and closes the connection pool
func (s *PostgresStore) Close() error {
	s.logger.Info("closing PostgreSQL store")
	if s.poller != nil {
		s.poller.Stop()
	}
	s.feed.Close()

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting connection pool: %w", err)
	}
	return sqlDB.Close()
}

// Subscribe opens a live subscription on q.
func (s *PostgresStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	return s.feed.Subscribe(ctx, q, s.load)
}

// Insert stores a new document and returns its generated ID.
func (s *PostgresStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	data, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	rec := documentRecord{
		Collection: collection,
		DocID:      uuid.New().String(),
		Data:       data,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("inserting document: %w", err)
	}

	s.feed.Notify(collection)
	return rec.DocID, nil
}

// Update merges fields into an existing document.
// Returns ErrNotFound if the document doesn't exist.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec documentRecord
		err := tx.Where("collection = ? AND doc_id = ?", collection, id).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("querying document: %w", err)
		}

		merged, err := mergeFields(rec.Data, fields)
		if err != nil {
			return err
		}
		if err := tx.Model(&rec).Update("data", merged).Error; err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.feed.Notify(collection)
	return nil
}

// Delete removes a document.
// Returns ErrNotFound if the document doesn't exist.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	result := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Delete(&documentRecord{})
	if result.Error != nil {
		return fmt.Errorf("deleting document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	s.feed.Notify(collection)
	return nil
}

// load reads a collection in insertion order and sorts it in process.
func (s *PostgresStore) load(ctx context.Context, q Query) ([]Document, error) {
	var recs []documentRecord
	err := s.db.WithContext(ctx).
		Where("collection = ?", q.Collection).
		Order("seq").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	items := make([]sequenced, 0, len(recs))
	for _, rec := range recs {
		fields, err := decodeFields(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", rec.DocID, err)
		}
		items = append(items, sequenced{doc: Document{ID: rec.DocID, Fields: fields}, seq: rec.Seq})
	}
	return sortDocuments(items, q), nil
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
