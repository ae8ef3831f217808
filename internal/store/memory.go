package store

import (
	"sync"
	"time"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MemoryStore keeps per-session conversation history and the listening flag
// the page toggles.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]Message
	maxMessages int
	listening   map[string]bool
}

func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string][]Message),
		maxMessages: maxMessages,
		listening:   make(map[string]bool),
	}
}

func (m *MemoryStore) Append(sessionID string, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.sessions[sessionID] = append(m.sessions[sessionID], msg)
	m.trimLocked(sessionID)
}

func (m *MemoryStore) Get(sessionID string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.sessions[sessionID]
	copyMsgs := make([]Message, len(msgs))
	copy(copyMsgs, msgs)
	return copyMsgs
}

func (m *MemoryStore) trimLocked(sessionID string) {
	if m.maxMessages <= 0 {
		return
	}
	msgs := m.sessions[sessionID]
	if len(msgs) > m.maxMessages {
		m.sessions[sessionID] = msgs[len(msgs)-m.maxMessages:]
	}
}

// Listening helpers

func (m *MemoryStore) Listening(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listening[sessionID]
}

func (m *MemoryStore) SetListening(sessionID string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on {
		m.listening[sessionID] = true
		return
	}
	delete(m.listening, sessionID)
}

// ToggleListening flips the flag and returns the new value.
func (m *MemoryStore) ToggleListening(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	on := !m.listening[sessionID]
	if on {
		m.listening[sessionID] = true
	} else {
		delete(m.listening, sessionID)
	}
	return on
}
