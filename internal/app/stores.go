package app

import (
	"context"

	"quiz-room-service/internal/domain"
)

// UserStore resolves the identity decoded from an access token.
type UserStore interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
}

// QuizRepository loads quiz definitions by code (from cache/backing store).
// Invalidate drops a cached definition after the engine changes the durable
// run status, so a later load does not resurrect the old status.
type QuizRepository interface {
	GetQuizByCode(ctx context.Context, code string) (domain.Quiz, error)
	Invalidate(ctx context.Context, code string) error
}

// QuizStatusStore mirrors the run status into the durable quiz record.
// Updates are best-effort; the room's in-memory mirror stays authoritative.
type QuizStatusStore interface {
	SetStatus(ctx context.Context, quizID, status string) error
}

// ScoreStore is the durable score ledger, one row per (quiz, user).
type ScoreStore interface {
	// InitScore creates a zero score entry if none exists. Never overwrites.
	InitScore(ctx context.Context, quizID, userID string) error
	// RecordAnswer adds points (zero for a wrong answer) and bumps the
	// answered counter in a single atomic write, so two racing submissions
	// for the same user never lose an update.
	RecordAnswer(ctx context.Context, quizID, userID string, points int) error
	// Leaderboard returns entries sorted by score descending, ties by user
	// id ascending.
	Leaderboard(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error)
	// DeleteScores removes every entry for the quiz.
	DeleteScores(ctx context.Context, quizID string) error
}

// PresenceStore is the durable connection record, one row per (quiz, user).
type PresenceStore interface {
	// Connect records the connection; inserting an already-present pair is
	// a no-op so reconnects never trip over stale rows.
	Connect(ctx context.Context, quizID, userID string) error
	// Disconnect removes the record.
	Disconnect(ctx context.Context, quizID, userID string) error
}
