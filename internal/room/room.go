package room

import (
	"encoding/json"
	"sort"
	"sync"

	"quiz-room-service/internal/domain"
)

// Room is the live session for one quiz code. It owns its member set; all
// mutation and broadcast enqueueing happen under the room mutex so the set is
// never observed mid-update and every member sees broadcasts in call order.
type Room struct {
	Code   string
	QuizID string

	mu      sync.Mutex
	closed  bool
	status  string
	members map[string]*Member // keyed by user id, one live member per user
}

// newRoom seeds the run-status mirror from the durable record so a room
// recreated after a transient full disconnect resumes a running quiz instead
// of silently dropping back to idle.
func newRoom(code, quizID, status string) *Room {
	if status == "" {
		status = domain.StatusIdle
	}
	return &Room{
		Code:    code,
		QuizID:  quizID,
		status:  status,
		members: make(map[string]*Member),
	}
}

// Add registers a member. If the user already has a live member (a second tab
// or a reconnect racing the old connection's teardown), the old one is
// replaced and returned so the caller can close its transport. Returns
// ErrRoomClosed when the registry pruned the room between GetOrCreate and Add;
// callers retry GetOrCreate.
func (r *Room) Add(m *Member) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, domain.ErrRoomClosed
	}
	replaced := r.members[m.UserID]
	r.members[m.UserID] = m
	return replaced, nil
}

// Remove drops the member only if it is still the live one for its user.
// A connection whose member was already replaced must not evict its
// replacement during cleanup. Reports whether a member was removed.
func (r *Room) Remove(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.members[userID]
	if !ok || current.ConnID != connID {
		return false
	}
	delete(r.members, userID)
	return true
}

// Broadcast delivers v to every current member except excludeUserID (empty
// string excludes no one). Enqueueing is non-blocking, so holding the mutex
// here is what guarantees per-member ordering without ever suspending under
// the lock. Members whose queue is full or closed are closed after the lock
// is released; their own read loops run the usual cleanup.
func (r *Room) Broadcast(v any, excludeUserID string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var failed []*Member
	r.mu.Lock()
	for userID, m := range r.members {
		if excludeUserID != "" && userID == excludeUserID {
			continue
		}
		if !m.enqueue(data) {
			failed = append(failed, m)
		}
	}
	r.mu.Unlock()

	for _, m := range failed {
		m.Close()
	}
	return nil
}

// Participants returns the current member set as broadcast payload entries,
// sorted by user id for stable output.
func (r *Room) Participants() []domain.ParticipantInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]domain.ParticipantInfo, 0, len(r.members))
	for _, m := range r.members {
		infos = append(infos, domain.ParticipantInfo{
			ID:     m.UserID,
			Email:  m.Email,
			IsHost: m.IsHost,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// MemberUserIDs lists the user ids currently in the room.
func (r *Room) MemberUserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.members))
	for userID := range r.members {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

// Status returns the room's run-status mirror.
func (r *Room) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// SetStatus updates the run-status mirror.
func (r *Room) SetStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

// Empty reports whether the room has no members.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0
}

// tryClose marks the room closed if it has no members. Called by the registry
// with the registry lock held, so a removal and a concurrent join serialize:
// the joiner either lands before the close or sees ErrRoomClosed and retries.
func (r *Room) tryClose() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return false
	}
	r.closed = true
	return true
}
