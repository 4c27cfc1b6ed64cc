package room

import "sync"

// Registry is the single authority for which rooms exist. A room is present
// iff it has at least one member: created on first join, pruned on last leave.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for a quiz code, creating it if absent.
// Atomic with respect to concurrent callers for the same code. status seeds
// a newly created room's run-status mirror; an existing room keeps its own
// mirror, which is authoritative while the room lives.
func (g *Registry) GetOrCreate(code, quizID, status string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[code]; ok {
		return r
	}
	r := newRoom(code, quizID, status)
	g.rooms[code] = r
	return r
}

// Get returns the room for a code if one exists.
func (g *Registry) Get(code string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[code]
	return r, ok
}

// RemoveIfEmpty prunes the room only when it has zero members. The room is
// marked closed before it leaves the map, so a join that already holds the
// stale pointer fails its Add and retries GetOrCreate instead of landing in
// an orphaned room.
func (g *Registry) RemoveIfEmpty(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[code]
	if !ok {
		return
	}
	if r.tryClose() {
		delete(g.rooms, code)
	}
}

// Len reports how many rooms are live.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
