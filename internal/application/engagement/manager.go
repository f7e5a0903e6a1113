package engagement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domain "github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/rule"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
	"github.com/fleetcheck/engage-hub/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION MANAGER
// Owns the per-session trigger bus and engine. A session is created when the
// client announces itself and torn down on logout or expiry; the bus and the
// engine never outlive it.
// ══════════════════════════════════════════════════════════════════════════════

// session bundles one user's bus and engine. Its mutex serializes every
// operation on the session, preserving the run-to-completion semantics the
// engine relies on.
type session struct {
	mu        sync.Mutex
	userID    shared.UserID
	bus       *messaging.SessionTriggerBus
	engine    *Engine
	unsub     func()
	startedAt time.Time
	lastSeen  time.Time
}

// Manager tracks active sessions and routes triggers and resolutions to the
// right engine.
type Manager struct {
	mu       sync.RWMutex
	sessions map[shared.SessionID]*session

	catalog     *rule.Catalog
	store       domain.SignalStore
	visits      domain.VisitTracker
	logger      *slog.Logger
	evalTimeout time.Duration
	sessionTTL  time.Duration
	now         func() time.Time
}

// ManagerConfig contains dependencies for the session manager.
type ManagerConfig struct {
	Catalog *rule.Catalog
	Store   domain.SignalStore

	// Visits is optional; when set, every session start records a visit.
	Visits domain.VisitTracker

	Logger *slog.Logger

	// EvalTimeout bounds signal reads per evaluation.
	EvalTimeout time.Duration

	// SessionTTL is how long an inactive session survives before the
	// reaper closes it.
	SessionTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewManager creates a session manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Catalog == nil || config.Store == nil {
		return nil, shared.NewDomainError("engagement", "NewManager", shared.ErrConfig,
			"catalog and store are required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.EvalTimeout <= 0 {
		config.EvalTimeout = 5 * time.Second
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 30 * time.Minute
	}
	if config.Now == nil {
		config.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Manager{
		sessions:    make(map[shared.SessionID]*session),
		catalog:     config.Catalog,
		store:       config.Store,
		visits:      config.Visits,
		logger:      config.Logger,
		evalTimeout: config.EvalTimeout,
		sessionTTL:  config.SessionTTL,
		now:         config.Now,
	}, nil
}

// StartSession creates the bus and engine for a new session. Starting an
// already-known session is a no-op returning the existing session, so a
// client may safely re-announce after a reconnect.
func (m *Manager) StartSession(ctx context.Context, sessionID shared.SessionID, userID shared.UserID) error {
	if !sessionID.IsValid() {
		return shared.NewDomainError("engagement", "StartSession", shared.ErrInvalidID,
			"session id cannot be empty")
	}
	if !userID.IsValid() {
		return shared.ErrNoActiveUser
	}

	m.mu.Lock()
	if existing, ok := m.sessions[sessionID]; ok {
		existing.lastSeen = m.now()
		m.mu.Unlock()
		return nil
	}

	bus := messaging.NewSessionTriggerBus(messaging.SessionTriggerBusConfig{
		SessionID:     sessionID,
		Logger:        m.logger,
		EnableMetrics: true,
	})

	engine, err := NewEngine(EngineConfig{
		SessionID:   sessionID,
		UserID:      userID,
		Catalog:     m.catalog,
		Store:       m.store,
		Logger:      m.logger,
		EvalTimeout: m.evalTimeout,
		Now:         m.now,
	})
	if err != nil {
		m.mu.Unlock()
		return err
	}

	sess := &session{
		userID:    userID,
		bus:       bus,
		engine:    engine,
		startedAt: m.now(),
		lastSeen:  m.now(),
	}
	sess.unsub = bus.Subscribe(engine.HandleTrigger)
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	if m.visits != nil {
		if _, err := m.visits.RecordVisit(ctx, userID); err != nil {
			m.logger.Warn("visit count update failed",
				"session_id", sessionID, "user_id", userID, "error", err)
		}
	}

	m.logger.Info("session started", "session_id", sessionID, "user_id", userID)

	// The session-start milestone itself can make a rule eligible.
	m.Emit(shared.NewTriggerEvent(shared.TriggerSessionStarted, sessionID))

	return nil
}

// EndSession closes the session's bus and forgets its engine. Unknown
// sessions are a no-op.
func (m *Manager) EndSession(sessionID shared.SessionID) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	sess.mu.Lock()
	sess.unsub()
	sess.bus.Close()
	sess.mu.Unlock()

	m.logger.Info("session ended", "session_id", sessionID, "user_id", sess.userID)
}

// Emit delivers a trigger event to its session's bus. Events for unknown or
// ended sessions are silently dropped.
func (m *Manager) Emit(event shared.TriggerEvent) {
	sess := m.lookup(event.SessionID)
	if sess == nil {
		m.logger.Debug("trigger for unknown session dropped",
			"session_id", event.SessionID, "trigger", event.Name)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = m.now()
	sess.bus.Emit(event)
}

// Popup returns the popup currently visible in a session, or nil.
func (m *Manager) Popup(sessionID shared.SessionID) (*VisiblePopup, error) {
	sess := m.lookup(sessionID)
	if sess == nil {
		return nil, shared.ErrSessionClosed
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.engine.Popup(), nil
}

// Dismiss resolves the visible popup in a session as dismissed.
func (m *Manager) Dismiss(ctx context.Context, sessionID shared.SessionID) error {
	return m.withSession(sessionID, func(s *session) error {
		return s.engine.Dismiss(ctx)
	})
}

// Click resolves the visible popup in a session as clicked.
func (m *Manager) Click(ctx context.Context, sessionID shared.SessionID) error {
	return m.withSession(sessionID, func(s *session) error {
		return s.engine.Click(ctx)
	})
}

// SubmitInput resolves the visible popup with free-text input.
func (m *Manager) SubmitInput(ctx context.Context, sessionID shared.SessionID, text string) error {
	return m.withSession(sessionID, func(s *session) error {
		return s.engine.SubmitInput(ctx, text)
	})
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// BusStats returns trigger delivery counters for a session.
func (m *Manager) BusStats(sessionID shared.SessionID) (messaging.TriggerBusStats, error) {
	sess := m.lookup(sessionID)
	if sess == nil {
		return messaging.TriggerBusStats{}, shared.ErrSessionClosed
	}
	return sess.bus.Metrics().Snapshot(), nil
}

// ReapExpired ends sessions idle longer than the session TTL. Returns the
// number of sessions closed. Intended to be called periodically.
func (m *Manager) ReapExpired() int {
	cutoff := m.now().Add(-m.sessionTTL)

	m.mu.RLock()
	var expired []shared.SessionID
	for id, sess := range m.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.EndSession(id)
	}
	return len(expired)
}

// Shutdown ends every session. Used during graceful shutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]shared.SessionID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.EndSession(id)
	}
}

func (m *Manager) lookup(sessionID shared.SessionID) *session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

func (m *Manager) withSession(sessionID shared.SessionID, fn func(*session) error) error {
	sess := m.lookup(sessionID)
	if sess == nil {
		return shared.ErrSessionClosed
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = m.now()
	return fn(sess)
}
