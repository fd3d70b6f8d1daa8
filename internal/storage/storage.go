// Package storage keeps a log of processed inbound message IDs so redelivered
// webhook payloads are acknowledged without reprocessing. Meta retries
// deliveries it considers unacknowledged; without this log a replayed YES
// could overwrite a later NO.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DedupStore records inbound messages and detects redeliveries.
type DedupStore interface {
	// RecordInbound inserts a new inbound message record. Returns false when
	// the message ID was already recorded (a redelivery).
	RecordInbound(ctx context.Context, messageID, sender string) (bool, error)

	// MarkProcessed sets the processed timestamp for a message.
	MarkProcessed(ctx context.Context, messageID string) error

	Close() error
}

// SQLiteDedup is a DedupStore backed by a local sqlite database.
type SQLiteDedup struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS inbound_messages (
	message_id   TEXT PRIMARY KEY,
	sender       TEXT NOT NULL,
	received_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	processed_at TIMESTAMP
);`

// NewSQLiteDedup opens (creating if needed) the dedup database at path.
func NewSQLiteDedup(path string) (*SQLiteDedup, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open dedup database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create dedup schema: %w", err)
	}
	return &SQLiteDedup{db: db}, nil
}

// RecordInbound inserts the message ID, reporting false on a duplicate.
func (s *SQLiteDedup) RecordInbound(ctx context.Context, messageID, sender string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO inbound_messages (message_id, sender) VALUES (?, ?)`,
		messageID, sender,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record inbound message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed stamps the message as fully handled.
func (s *SQLiteDedup) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE inbound_messages SET processed_at = CURRENT_TIMESTAMP WHERE message_id = ?`,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteDedup) Close() error {
	return s.db.Close()
}
