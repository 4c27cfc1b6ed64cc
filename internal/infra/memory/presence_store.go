package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-room-service/internal/domain"
)

// PresenceStore is the in-memory connection record (tests, demo mode).
type PresenceStore struct {
	mu   sync.RWMutex
	rows map[string]map[string]domain.Participant // quiz id -> user id -> row
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{rows: make(map[string]map[string]domain.Participant)}
}

func (s *PresenceStore) Connect(_ context.Context, quizID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser := s.rows[quizID]
	if byUser == nil {
		byUser = make(map[string]domain.Participant)
		s.rows[quizID] = byUser
	}
	if _, ok := byUser[userID]; ok {
		return nil
	}
	byUser[userID] = domain.Participant{QuizID: quizID, UserID: userID, ConnectedAt: time.Now()}
	return nil
}

func (s *PresenceStore) Disconnect(_ context.Context, quizID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byUser, ok := s.rows[quizID]; ok {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(s.rows, quizID)
		}
	}
	return nil
}

// Connected lists user ids with a presence row for the quiz; used by tests.
func (s *PresenceStore) Connected(quizID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := s.rows[quizID]
	ids := make([]string, 0, len(byUser))
	for userID := range byUser {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}
