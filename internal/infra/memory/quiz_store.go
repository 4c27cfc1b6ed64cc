package memory

import (
	"context"
	"sync"

	"quiz-room-service/internal/domain"
)

// QuizStore is a static in-memory quiz backing store (tests, demo mode). It
// serves as the loader behind the cached repositories and accepts the
// best-effort durable status mirror.
type QuizStore struct {
	mu     sync.RWMutex
	byCode map[string]*domain.Quiz
	byID   map[string]*domain.Quiz
}

func NewQuizStore(quizzes ...domain.Quiz) *QuizStore {
	s := &QuizStore{
		byCode: make(map[string]*domain.Quiz),
		byID:   make(map[string]*domain.Quiz),
	}
	for i := range quizzes {
		q := quizzes[i]
		if q.Status == "" {
			q.Status = domain.StatusIdle
		}
		s.byCode[q.Code] = &q
		s.byID[q.ID] = &q
	}
	return s
}

func (s *QuizStore) LoadQuizByCode(_ context.Context, code string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q, ok := s.byCode[code]; ok {
		return *q, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *QuizStore) SetStatus(_ context.Context, quizID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.byID[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	q.Status = status
	return nil
}

// Status reads the durable status mirror; used by tests.
func (s *QuizStore) Status(quizID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q, ok := s.byID[quizID]; ok {
		return q.Status
	}
	return ""
}
