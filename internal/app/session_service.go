package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"velora-scenario-service/internal/domain"
	"velora-scenario-service/internal/logger"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Save(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// ScenarioRepository loads scenario content (from cache/backing store).
type ScenarioRepository interface {
	GetScenario(ctx context.Context, scenarioID string) (domain.Scenario, error)
}

// IdentityResolver turns a bearer token (possibly empty) into an identity oracle.
type IdentityResolver interface {
	IdentityFor(token string) IdentityOracle
}

// QuotaFactory returns the anonymous counter for one device.
type QuotaFactory func(deviceID string) QuotaStore

// SessionConfig wires the session service.
type SessionConfig struct {
	Sessions       SessionRepository
	Scenarios      ScenarioRepository
	Identities     IdentityResolver
	Quotas         QuotaFactory
	Progress       ProgressStore
	AnonymousLimit int
	Logger         *logger.Logger
}

// SessionService hosts one controller per playing client.
type SessionService struct {
	cfg SessionConfig
	log *logger.Logger
}

func NewSessionService(cfg SessionConfig) *SessionService {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &SessionService{cfg: cfg, log: log.With("component", "session_service")}
}

// Snapshot is a session's current view plus routing details for the client.
type Snapshot struct {
	SessionID  string `json:"sessionId"`
	ScenarioID string `json:"scenarioId"`
	DeviceID   string `json:"deviceId"`
	View
	AnonymousRemaining *int `json:"anonymousRemaining,omitempty"`
}

// Start loads the scenario and opens a session on its first question. An empty
// deviceID is replaced with a fresh one the client should keep.
func (s *SessionService) Start(ctx context.Context, scenarioID, deviceID, token string) (Snapshot, error) {
	scenario, err := s.cfg.Scenarios.GetScenario(ctx, scenarioID)
	if err != nil {
		return Snapshot{}, err
	}
	if len(scenario.Questions) == 0 {
		return Snapshot{}, domain.ErrScenarioEmpty
	}
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	var identity IdentityOracle
	if s.cfg.Identities != nil {
		identity = s.cfg.Identities.IdentityFor(token)
	}
	var quota QuotaStore
	if s.cfg.Quotas != nil {
		quota = s.cfg.Quotas(deviceID)
	}

	session := NewSession(uuid.NewString(), scenario.ID, deviceID, NewController(scenario.Questions, ControllerDeps{
		Identity:       identity,
		Quota:          quota,
		Progress:       s.cfg.Progress,
		AnonymousLimit: s.cfg.AnonymousLimit,
		Logger:         s.log.With("scenario_id", scenario.ID, "device_id", deviceID),
	}))
	// token verification is local, so resolve before the first render
	session.Controller.ResolveIdentity(ctx)
	s.cfg.Sessions.Save(session)

	s.log.Debug("session started", "session_id", session.ID, "scenario_id", scenario.ID)
	return session.snapshot(ctx), nil
}

// Get returns the current snapshot of a session.
func (s *SessionService) Get(ctx context.Context, sessionID string) (Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.snapshot(ctx), nil
}

// Select chooses an answer for the current question.
func (s *SessionService) Select(ctx context.Context, sessionID, answerID string) (Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := session.Controller.Select(answerID); err != nil {
		return Snapshot{}, err
	}
	return session.publish(ctx), nil
}

// Submit locks in the current selection.
func (s *SessionService) Submit(ctx context.Context, sessionID string) (Snapshot, Outcome, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return Snapshot{}, OutcomeIgnored, err
	}
	outcome := session.Controller.Submit(ctx)
	return session.publish(ctx), outcome, nil
}

// Next advances to the following question.
func (s *SessionService) Next(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return Snapshot{}, false, err
	}
	moved := session.Controller.Next()
	return session.publish(ctx), moved, nil
}

// SetToken applies a sign-in (or sign-out with an empty token) to a live session.
func (s *SessionService) SetToken(ctx context.Context, sessionID, token string) (Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if s.cfg.Identities != nil {
		id, err := s.cfg.Identities.IdentityFor(token).CurrentIdentity(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		session.Controller.SetIdentity(id)
	}
	return session.publish(ctx), nil
}

// Subscribe returns a channel that receives snapshots after every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(ctx context.Context, sessionID string) (<-chan Snapshot, func(), error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe(ctx)
	return ch, cancel, nil
}

// End drops a session and closes its subscriptions once the session's progress
// writes have settled or ctx ends.
func (s *SessionService) End(ctx context.Context, sessionID string) {
	session, ok := s.cfg.Sessions.Get(sessionID)
	s.cfg.Sessions.Delete(sessionID)
	if !ok {
		return
	}
	if err := session.Controller.Flush(ctx); err != nil {
		s.log.Warn("session ended with progress writes in flight", "session_id", sessionID, "error", err)
	}
	session.close()
}

func (s *SessionService) session(sessionID string) (*Session, error) {
	session, ok := s.cfg.Sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	return session, nil
}

// Session is one client's live run through a scenario.
type Session struct {
	ID         string
	ScenarioID string
	DeviceID   string
	CreatedAt  time.Time
	Controller *Controller

	mu          sync.Mutex
	closed      bool
	subscribers map[chan Snapshot]struct{}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id, scenarioID, deviceID string, controller *Controller) *Session {
	return &Session{
		ID:          id,
		ScenarioID:  scenarioID,
		DeviceID:    deviceID,
		CreatedAt:   time.Now(),
		Controller:  controller,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

func (s *Session) snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{
		SessionID:  s.ID,
		ScenarioID: s.ScenarioID,
		DeviceID:   s.DeviceID,
		View:       s.Controller.View(),
	}
	if remaining, ok := s.Controller.Remaining(ctx); ok {
		snap.AnonymousRemaining = &remaining
	}
	return snap
}

func (s *Session) subscribe(ctx context.Context) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	initial := s.snapshot(ctx)

	ch <- initial

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// close ends every subscription; watchers see their channel closed.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) publish(ctx context.Context) Snapshot {
	snap := s.snapshot(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot so a slow watcher never blocks a transition
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}
