package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dspec/internal/generator"
)

// GetResponse implements generator.ResponseCache. A miss returns (nil, nil)
// per the interface contract.
func (s *Store) GetResponse(key string) (*generator.Response, error) {
	var resp generator.Response
	err := s.db.QueryRowContext(context.Background(), `
		SELECT content, model, response_id FROM gen_cache WHERE key = ?
	`, key).Scan(&resp.Content, &resp.Model, &resp.ResponseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gen cache get: %w", err)
	}
	return &resp, nil
}

// PutResponse implements generator.ResponseCache. The first response for a
// key wins; replays must stay byte-identical across runs.
func (s *Store) PutResponse(key string, resp *generator.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO gen_cache (key, content, model, response_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, resp.Content, resp.Model, resp.ResponseID)
	if err != nil {
		return fmt.Errorf("gen cache put: %w", err)
	}
	return nil
}
