package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-room-service/internal/domain"
)

// ScoreStore is the Postgres score ledger. Every write is a single upsert
// keyed by (quiz_id, user_id), so concurrent submissions for the same user
// serialize in the database and no increment is lost.
type ScoreStore struct {
	pool *pgxpool.Pool
}

func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

func (s *ScoreStore) InitScore(ctx context.Context, quizID, userID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_participant_scores (quiz_id, user_id, score, questions_answered)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (quiz_id, user_id) DO NOTHING
	`, quizID, userID)
	if err != nil {
		return fmt.Errorf("init score: %w", err)
	}
	return nil
}

func (s *ScoreStore) RecordAnswer(ctx context.Context, quizID, userID string, points int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_participant_scores (quiz_id, user_id, score, questions_answered)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (quiz_id, user_id) DO UPDATE
		   SET score = quiz_participant_scores.score + EXCLUDED.score,
		       questions_answered = quiz_participant_scores.questions_answered + 1,
		       updated_at = now()
	`, quizID, userID, points)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

func (s *ScoreStore) Leaderboard(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.user_id, u.email, s.score, s.questions_answered
		  FROM quiz_participant_scores s
		  JOIN users u ON u.id = s.user_id
		 WHERE s.quiz_id = $1
		 ORDER BY s.score DESC, s.user_id ASC
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Email, &e.Score, &e.QuestionsAnswered); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	return entries, nil
}

func (s *ScoreStore) DeleteScores(ctx context.Context, quizID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM quiz_participant_scores WHERE quiz_id = $1`, quizID)
	if err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}
	return nil
}
