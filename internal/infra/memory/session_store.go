package memory

import (
	"sync"
	"time"

	"velora-scenario-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository. Sessions
// idle for longer than ttl are dropped on access.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*storedSession
}

type storedSession struct {
	session  *app.Session
	lastSeen time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]*storedSession),
	}
}

func (s *SessionStore) Save(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &storedSession{session: session, lastSeen: s.clock()}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	now := s.clock()
	if s.ttl > 0 && now.Sub(stored.lastSeen) > s.ttl {
		delete(s.sessions, sessionID)
		return nil, false
	}
	stored.lastSeen = now
	return stored.session, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
