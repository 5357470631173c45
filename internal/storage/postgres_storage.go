package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chani337/selfstar/internal/core/ports"
)

// PostgresStore is the shared-deployment dedup backend. Marks are idempotent
// upserts, so two processes racing on the same comment id is harmless.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	s := &PostgresStore{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

var _ ports.DedupStore = (*PostgresStore)(nil)

func (s *PostgresStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS auto_image_done (
			comment_id TEXT PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %v", err)
		}
	}
	return nil
}

func (s *PostgresStore) IsDone(ctx context.Context, commentID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM auto_image_done WHERE comment_id=$1)", commentID).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) MarkDone(ctx context.Context, commentID string) error {
	_, err := s.Pool.Exec(ctx, "INSERT INTO auto_image_done (comment_id) VALUES ($1) ON CONFLICT DO NOTHING", commentID)
	return err
}

func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}
