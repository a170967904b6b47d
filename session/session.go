// Package session keeps bounded per-conversation history so the model
// has short-term memory without unbounded context growth.
package session

import (
	"sync"

	"github.com/google/uuid"
)

type Turn struct {
	Role    string
	Content string
}

// Manager is a concurrency-safe in-memory session store. Histories are
// capped at 2×maxHistory turns (user+assistant pairs); the oldest pair
// is evicted first. An unknown session id behaves as a fresh empty
// session rather than an error, so session loss degrades gracefully.
type Manager struct {
	mu       sync.Mutex
	sessions map[string][]Turn
	maxTurns int
}

const defaultMaxHistory = 2

func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Manager{
		sessions: make(map[string][]Turn),
		maxTurns: 2 * maxHistory,
	}
}

// Create returns a new opaque session id.
func (m *Manager) Create() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	return id
}

// AddExchange appends one user/assistant pair to the session,
// creating it if the id is unknown, and evicts the oldest turns beyond
// the cap. Appends for one session serialize under the manager lock.
func (m *Manager) AddExchange(id, userMsg, assistantMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := append(m.sessions[id],
		Turn{Role: "user", Content: userMsg},
		Turn{Role: "assistant", Content: assistantMsg},
	)
	if len(turns) > m.maxTurns {
		turns = turns[len(turns)-m.maxTurns:]
	}
	m.sessions[id] = turns
}

// History returns a copy of the session's turns, oldest first. Unknown
// ids yield an empty history.
func (m *Manager) History(id string) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.sessions[id]
	if len(turns) == 0 {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Clear drops a session's history but keeps the id usable.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
