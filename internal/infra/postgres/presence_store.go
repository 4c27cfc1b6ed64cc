package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// PresenceStore is the durable connection record. The unique key on
// (quiz_id, user_id) plus DO NOTHING makes concurrent joins for the same user
// land exactly one row without surfacing a duplicate-key failure.
type PresenceStore struct {
	pool *pgxpool.Pool
}

func NewPresenceStore(pool *pgxpool.Pool) *PresenceStore {
	return &PresenceStore{pool: pool}
}

func (s *PresenceStore) Connect(ctx context.Context, quizID, userID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_connections (quiz_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (quiz_id, user_id) DO NOTHING
	`, quizID, userID)
	if err != nil {
		return fmt.Errorf("record connection: %w", err)
	}
	return nil
}

func (s *PresenceStore) Disconnect(ctx context.Context, quizID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM quiz_connections WHERE quiz_id = $1 AND user_id = $2`, quizID, userID)
	if err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	return nil
}
