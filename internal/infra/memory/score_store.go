package memory

import (
	"context"
	"sync"
	"time"

	"quiz-room-service/internal/domain"
)

// ScoreStore is the in-memory score ledger (tests, demo mode). All write
// paths mutate under one lock, mirroring the single-statement atomicity the
// postgres implementation gets from upserts.
type ScoreStore struct {
	users *UserStore

	mu      sync.RWMutex
	entries map[string]map[string]*domain.ScoreEntry // quiz id -> user id -> entry
}

func NewScoreStore(users *UserStore) *ScoreStore {
	return &ScoreStore{
		users:   users,
		entries: make(map[string]map[string]*domain.ScoreEntry),
	}
}

func (s *ScoreStore) InitScore(_ context.Context, quizID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser := s.entries[quizID]
	if byUser == nil {
		byUser = make(map[string]*domain.ScoreEntry)
		s.entries[quizID] = byUser
	}
	if _, ok := byUser[userID]; ok {
		return nil
	}
	now := time.Now()
	byUser[userID] = &domain.ScoreEntry{
		QuizID:    quizID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *ScoreStore) RecordAnswer(_ context.Context, quizID, userID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser := s.entries[quizID]
	if byUser == nil {
		byUser = make(map[string]*domain.ScoreEntry)
		s.entries[quizID] = byUser
	}
	now := time.Now()
	entry, ok := byUser[userID]
	if !ok {
		entry = &domain.ScoreEntry{QuizID: quizID, UserID: userID, CreatedAt: now}
		byUser[userID] = entry
	}
	entry.Score += points
	entry.QuestionsAnswered++
	entry.UpdatedAt = now
	return nil
}

func (s *ScoreStore) Leaderboard(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := s.entries[quizID]
	out := make([]domain.LeaderboardEntry, 0, len(byUser))
	for userID, entry := range byUser {
		email := ""
		if s.users != nil {
			if u, err := s.users.GetUser(ctx, userID); err == nil {
				email = u.Email
			}
		}
		out = append(out, domain.LeaderboardEntry{
			UserID:            userID,
			Email:             email,
			Score:             entry.Score,
			QuestionsAnswered: entry.QuestionsAnswered,
		})
	}
	domain.SortLeaderboard(out)
	return out, nil
}

func (s *ScoreStore) DeleteScores(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, quizID)
	return nil
}
