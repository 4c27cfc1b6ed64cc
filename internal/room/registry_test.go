package room

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"quiz-room-service/internal/domain"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()

	r := reg.GetOrCreate("ABC123", "quiz-1", "")
	if r == nil {
		t.Fatalf("expected room")
	}
	if again := reg.GetOrCreate("ABC123", "quiz-1", ""); again != r {
		t.Fatalf("expected same room for same code")
	}

	// Empty room: prune succeeds.
	reg.RemoveIfEmpty("ABC123")
	if _, ok := reg.Get("ABC123"); ok {
		t.Fatalf("expected room removed when empty")
	}

	// Occupied room: prune is a no-op.
	r = reg.GetOrCreate("ABC123", "quiz-1", "")
	if _, err := r.Add(NewMember("c1", "u1", "u1@example.com", false)); err != nil {
		t.Fatalf("add: %v", err)
	}
	reg.RemoveIfEmpty("ABC123")
	if _, ok := reg.Get("ABC123"); !ok {
		t.Fatalf("room with members must not be pruned")
	}
}

func TestGetOrCreateSeedsStatus(t *testing.T) {
	reg := NewRegistry()

	r := reg.GetOrCreate("ABC123", "quiz-1", domain.StatusRunning)
	if r.Status() != domain.StatusRunning {
		t.Fatalf("new room status = %q, want running", r.Status())
	}

	// An existing room keeps its own mirror; the seed only applies on create.
	r.SetStatus(domain.StatusIdle)
	if again := reg.GetOrCreate("ABC123", "quiz-1", domain.StatusRunning); again.Status() != domain.StatusIdle {
		t.Fatalf("existing room mirror overwritten to %q", again.Status())
	}

	// Empty status falls back to idle.
	if idle := reg.GetOrCreate("XYZ789", "quiz-2", ""); idle.Status() != domain.StatusIdle {
		t.Fatalf("default status = %q, want idle", idle.Status())
	}
}

func TestPrunedRoomRejectsJoin(t *testing.T) {
	reg := NewRegistry()
	stale := reg.GetOrCreate("ABC123", "quiz-1", "")
	reg.RemoveIfEmpty("ABC123")

	// A joiner holding the stale pointer must fail and retry GetOrCreate.
	if _, err := stale.Add(NewMember("c1", "u1", "u1@example.com", false)); !errors.Is(err, domain.ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}

	fresh := reg.GetOrCreate("ABC123", "quiz-1", "")
	if fresh == stale {
		t.Fatalf("expected a fresh room after prune")
	}
	if _, err := fresh.Add(NewMember("c1", "u1", "u1@example.com", false)); err != nil {
		t.Fatalf("join fresh room: %v", err)
	}
}

// Room exists in the registry iff it has members, for any interleaving of
// joins and leaves.
func TestRegistryConcurrentJoinLeave(t *testing.T) {
	reg := NewRegistry()
	const workers = 16
	const rounds = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%02d", w)
			for i := 0; i < rounds; i++ {
				connID := fmt.Sprintf("c%02d-%d", w, i)
				m := NewMember(connID, userID, userID+"@example.com", false)
				for {
					r := reg.GetOrCreate("ABC123", "quiz-1", "")
					if _, err := r.Add(m); err == nil {
						if !r.Remove(userID, connID) {
							t.Errorf("member %s vanished", connID)
						}
						reg.RemoveIfEmpty("ABC123")
						break
					}
				}
			}
		}(w)
	}
	wg.Wait()

	if reg.Len() != 0 {
		t.Fatalf("expected no rooms after all leaves, got %d", reg.Len())
	}
}
