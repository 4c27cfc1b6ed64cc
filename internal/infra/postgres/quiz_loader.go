package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-room-service/internal/domain"
)

// QuizLoader loads quiz definitions and their questions from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuizByCode(ctx context.Context, code string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx,
		`SELECT id, code, title, COALESCE(description, ''), status, created_by_id
		   FROM quizzes WHERE code = $1`, code).
		Scan(&quiz.ID, &quiz.Code, &quiz.Title, &quiz.Description, &quiz.Status, &quiz.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, text, options, correct_answer, score, display_order
		   FROM questions WHERE quiz_id = $1
		  ORDER BY display_order, id`, quiz.ID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.Question
		var rawOptions []byte
		if err := rows.Scan(&q.ID, &q.Text, &rawOptions, &q.CorrectAnswer, &q.Score, &q.Order); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawOptions, &q.Options); err != nil {
			return domain.Quiz{}, fmt.Errorf("unmarshal options: %w", err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	return quiz, nil
}

// SetStatus mirrors the run status into the quizzes table.
func (l *QuizLoader) SetStatus(ctx context.Context, quizID, status string) error {
	_, err := l.pool.Exec(ctx, `UPDATE quizzes SET status = $2 WHERE id = $1`, quizID, status)
	if err != nil {
		return fmt.Errorf("update quiz status: %w", err)
	}
	return nil
}
