package chat

import (
	"sync"

	"github.com/sirupsen/logrus"

	"krishi-mitra/internal/infra/logger"
)

// Factory builds a session for a client.
type Factory func(clientID string, lang Language) *Session

// Manager hosts sessions and keeps at most one open per client: opening a
// new one tears down the client's previous session first.
type Manager struct {
	factory Factory
	log     *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	byClient map[string]string
}

func NewManager(factory Factory, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Manager{
		factory:  factory,
		log:      log,
		sessions: make(map[string]*Session),
		byClient: make(map[string]string),
	}
}

// Open starts a session for clientID, closing the one it replaces. The
// client's slot is swapped under a single lock so concurrent opens for the
// same client leave exactly one session hosted.
func (m *Manager) Open(clientID string, lang Language) *Session {
	s := m.factory(clientID, lang)

	m.mu.Lock()
	var previous *Session
	if id, ok := m.byClient[clientID]; ok {
		previous = m.sessions[id]
		delete(m.sessions, id)
	}
	m.sessions[s.ID()] = s
	m.byClient[clientID] = s.ID()
	m.mu.Unlock()

	if previous != nil {
		m.log.Info("replacing client session", logrus.Fields{"client_id": clientID, "session_id": previous.ID()})
		previous.Close()
	}

	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close tears down one session and reports whether it was hosted here.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		if m.byClient[s.ClientID()] == id {
			delete(m.byClient, s.ClientID())
		}
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	return true
}

// CloseAll tears down every hosted session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.byClient = make(map[string]string)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
