package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Override is a manual full replacement of a generated artifact. BaseHash
// records the artifact version the author replaced: if a later run would
// regenerate the path from changed inputs, the mismatch between BaseHash
// and the fresh content is a conflict and the run must stop, not merge.
type Override struct {
	OutputPath string    `json:"output_path"`
	BaseHash   string    `json:"base_hash"`
	Content    []byte    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// PutOverride registers or replaces the override for a path.
func (s *Store) PutOverride(ctx context.Context, o Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (output_path, base_hash, content)
		VALUES (?, ?, ?)
		ON CONFLICT(output_path) DO UPDATE SET
			base_hash = excluded.base_hash,
			content = excluded.content,
			created_at = CURRENT_TIMESTAMP
	`, o.OutputPath, o.BaseHash, o.Content)
	if err != nil {
		return fmt.Errorf("put override: %w", err)
	}
	return nil
}

// GetOverride returns the override for a path, or ErrNotFound.
func (s *Store) GetOverride(ctx context.Context, path string) (Override, error) {
	var o Override
	err := s.db.QueryRowContext(ctx, `
		SELECT output_path, base_hash, content, created_at
		FROM overrides WHERE output_path = ?
	`, path).Scan(&o.OutputPath, &o.BaseHash, &o.Content, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Override{}, ErrNotFound
	}
	if err != nil {
		return Override{}, fmt.Errorf("get override: %w", err)
	}
	return o, nil
}

// DeleteOverride removes the override for a path. Missing rows are not an
// error; the end state is the same.
func (s *Store) DeleteOverride(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM overrides WHERE output_path = ?`, path); err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	return nil
}
