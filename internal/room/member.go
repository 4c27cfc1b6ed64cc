package room

import (
	"encoding/json"
	"sync"

	"quiz-room-service/internal/domain"
)

// outboundBuffer bounds the per-member send queue. A member that falls this
// far behind is treated as dead and scheduled for removal.
const outboundBuffer = 32

// Member is one live connection in a room: the user identity it represents
// plus its outbound message queue. The transport owns a writer goroutine that
// drains Outbound; the room only ever enqueues.
type Member struct {
	ConnID string
	UserID string
	Email  string
	IsHost bool

	mu     sync.Mutex
	closed bool
	out    chan []byte
}

func NewMember(connID, userID, email string, isHost bool) *Member {
	return &Member{
		ConnID: connID,
		UserID: userID,
		Email:  email,
		IsHost: isHost,
		out:    make(chan []byte, outboundBuffer),
	}
}

// Outbound is drained by the connection's writer goroutine. It is closed when
// the member is removed or its queue overflows.
func (m *Member) Outbound() <-chan []byte {
	return m.out
}

// Send marshals and enqueues a message for this member alone.
func (m *Member) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !m.enqueue(data) {
		return domain.ErrRoomClosed
	}
	return nil
}

// enqueue never blocks: a full queue means the client stopped reading, and a
// stalled member must not hold up a broadcast to everyone else.
func (m *Member) enqueue(data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.out <- data:
		return true
	default:
		return false
	}
}

// Close shuts the outbound queue exactly once. The writer goroutine drains
// what is already buffered and then closes the transport, which in turn makes
// the connection's read loop exit and run its cleanup.
func (m *Member) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.out)
}
