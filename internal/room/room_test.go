package room

import (
	"encoding/json"
	"testing"

	"quiz-room-service/internal/domain"
)

func TestAddReplacesSameUser(t *testing.T) {
	r := newRoom("ABC123", "quiz-1", "")

	first := NewMember("c1", "u1", "u1@example.com", false)
	if replaced, err := r.Add(first); err != nil || replaced != nil {
		t.Fatalf("expected clean add, got replaced=%v err=%v", replaced, err)
	}

	second := NewMember("c2", "u1", "u1@example.com", false)
	replaced, err := r.Add(second)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if replaced != first {
		t.Fatalf("expected first member replaced, got %+v", replaced)
	}

	// The replaced connection's cleanup must not evict the replacement.
	if r.Remove("u1", "c1") {
		t.Fatalf("stale connection removed the live member")
	}
	if !r.Remove("u1", "c2") {
		t.Fatalf("live member not removed")
	}
	if !r.Empty() {
		t.Fatalf("expected empty room")
	}
}

func TestBroadcastOrderPerMember(t *testing.T) {
	r := newRoom("ABC123", "quiz-1", "")
	m := NewMember("c1", "u1", "u1@example.com", false)
	if _, err := r.Add(m); err != nil {
		t.Fatalf("add: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := r.Broadcast(map[string]int{"seq": i}, ""); err != nil {
			t.Fatalf("broadcast: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		var msg struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(<-m.Outbound(), &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Seq != i {
			t.Fatalf("expected seq %d, got %d", i, msg.Seq)
		}
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := newRoom("ABC123", "quiz-1", "")
	sender := NewMember("c1", "u1", "u1@example.com", false)
	other := NewMember("c2", "u2", "u2@example.com", false)
	for _, m := range []*Member{sender, other} {
		if _, err := r.Add(m); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if err := r.Broadcast(map[string]string{"hello": "world"}, "u1"); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	select {
	case msg := <-sender.Outbound():
		t.Fatalf("excluded member received %s", msg)
	default:
	}
	if len(<-other.Outbound()) == 0 {
		t.Fatalf("expected message for other member")
	}
}

func TestBroadcastClosesStalledMember(t *testing.T) {
	r := newRoom("ABC123", "quiz-1", "")
	stalled := NewMember("c1", "u1", "u1@example.com", false)
	healthy := NewMember("c2", "u2", "u2@example.com", false)
	for _, m := range []*Member{stalled, healthy} {
		if _, err := r.Add(m); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	// Nobody drains the stalled member; its queue fills and overflows.
	for i := 0; i <= outboundBuffer; i++ {
		if err := r.Broadcast(map[string]int{"seq": i}, ""); err != nil {
			t.Fatalf("broadcast: %v", err)
		}
		// Keep the healthy member drained so only the stalled one overflows.
		<-healthy.Outbound()
	}

	// The overflowing broadcast closed the stalled member's queue.
	drained := 0
	for range stalled.Outbound() {
		drained++
	}
	if drained != outboundBuffer {
		t.Fatalf("expected closed queue with %d buffered, drained %d", outboundBuffer, drained)
	}

	// The healthy member still receives later broadcasts.
	if err := r.Broadcast(map[string]string{"still": "alive"}, ""); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if len(<-healthy.Outbound()) == 0 {
		t.Fatalf("expected delivery to healthy member")
	}
}

func TestParticipantsSorted(t *testing.T) {
	r := newRoom("ABC123", "quiz-1", "")
	for _, id := range []string{"u3", "u1", "u2"} {
		if _, err := r.Add(NewMember("c-"+id, id, id+"@example.com", id == "u1")); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	got := r.Participants()
	want := []domain.ParticipantInfo{
		{ID: "u1", Email: "u1@example.com", IsHost: true},
		{ID: "u2", Email: "u2@example.com"},
		{ID: "u3", Email: "u3@example.com"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d participants, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("participant %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStatusMirror(t *testing.T) {
	r := newRoom("ABC123", "quiz-1", "")
	if r.Status() != domain.StatusIdle {
		t.Fatalf("new room status = %q", r.Status())
	}
	r.SetStatus(domain.StatusRunning)
	if r.Status() != domain.StatusRunning {
		t.Fatalf("status = %q after SetStatus", r.Status())
	}
}
