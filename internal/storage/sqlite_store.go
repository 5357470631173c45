package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/chani337/selfstar/internal/core/ports"
)

// SQLiteStore is the zero-config local dedup backend, used when no
// DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps the fire-and-forget writers from tripping over readers.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

var _ ports.DedupStore = (*SQLiteStore)(nil)

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS auto_image_done (
		comment_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsDone(ctx context.Context, commentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM auto_image_done WHERE comment_id=?)", commentID).Scan(&exists)
	return exists, err
}

func (s *SQLiteStore) MarkDone(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO auto_image_done (comment_id) VALUES (?) ON CONFLICT DO NOTHING", commentID)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
