package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/models"
	"kiosk-sync/pkg/metrics"
)

// Listener receives the current session after every change. A nil session
// means no session is active. Listeners see the latest value only;
// intermediate states superseded before their callback runs are coalesced
// away because each callback carries a fresh snapshot.
type Listener func(session *models.VisitorSession)

// Manager owns the device's current visitor session and the exhibition-wide
// visitor-session cache. It is a process-scoped object handed to components
// by the composition root, never an ambient singleton.
//
// Exactly one current session exists per device process; the cache holds
// every session of the exhibition for tag-to-session lookup and expiry.
type Manager struct {
	mu        sync.RWMutex
	current   *models.VisitorSession
	tags      []string
	cache     map[uuid.UUID]models.VisitorSession
	listeners []Listener
	logger    *zap.Logger

	now func() time.Time
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		cache:  make(map[uuid.UUID]models.VisitorSession),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers a change listener. Delivery order across listeners is
// unspecified.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// StartSession sets the current session and its associated tag set and
// notifies listeners.
func (m *Manager) StartSession(session *models.VisitorSession, tags []string) {
	m.mu.Lock()
	m.current = session.Clone()
	m.tags = append([]string(nil), tags...)
	m.cache[session.ID] = *session.Clone()
	snapshot, listeners := m.current.Clone(), m.listeners
	m.mu.Unlock()

	m.logger.Info("Visitor session started",
		zap.String("session_id", session.ID.String()),
		zap.String("language", session.Language),
	)
	notify(listeners, snapshot)
}

// EndSession clears the current session and tags and notifies listeners.
func (m *Manager) EndSession() {
	m.mu.Lock()
	ended := m.current
	m.current = nil
	m.tags = nil
	listeners := m.listeners
	m.mu.Unlock()

	if ended != nil {
		m.logger.Info("Visitor session ended",
			zap.String("session_id", ended.ID.String()),
		)
	}
	notify(listeners, nil)
}

// Current returns a snapshot of the current session, or nil.
func (m *Manager) Current() *models.VisitorSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Tags returns the tag set associated with the current session.
func (m *Manager) Tags() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.tags...)
}

// SetVariable mutates the current session's variable map: replace if
// present, insert otherwise, remove when value is nil. It only changes
// local state; the caller pairs it with an outbox enqueue.
//
// Returns false when no session is active.
func (m *Manager) SetVariable(name string, value *string) bool {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return false
	}
	if m.current.Variables == nil {
		m.current.Variables = make(map[string]string)
	}
	if value == nil {
		delete(m.current.Variables, name)
	} else {
		m.current.Variables[name] = *value
	}
	snapshot, listeners := m.current.Clone(), m.listeners
	m.mu.Unlock()

	notify(listeners, snapshot)
	return true
}

// MergeRemote folds a remotely-updated session into the cache, and into the
// current session when the ids match. Conflicts resolve last-writer-wins by
// modifiedAt; an equal or older remote copy is ignored.
func (m *Manager) MergeRemote(session models.VisitorSession) {
	m.mu.Lock()
	if cached, ok := m.cache[session.ID]; ok && !session.ModifiedAt.After(cached.ModifiedAt) {
		m.mu.Unlock()
		return
	}
	m.cache[session.ID] = *session.Clone()

	var snapshot *models.VisitorSession
	var listeners []Listener
	if m.current != nil && m.current.ID == session.ID && session.ModifiedAt.After(m.current.ModifiedAt) {
		m.current = session.Clone()
		snapshot, listeners = m.current.Clone(), m.listeners
	}
	m.mu.Unlock()

	if listeners != nil {
		notify(listeners, snapshot)
	}
}

// CachedSessions returns a snapshot of the exhibition-wide session cache.
func (m *Manager) CachedSessions() []models.VisitorSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]models.VisitorSession, 0, len(m.cache))
	for _, s := range m.cache {
		sessions = append(sessions, *s.Clone())
	}
	return sessions
}

// FindByTag returns the cached session holding the given RFID tag, or nil.
func (m *Manager) FindByTag(tag string) *models.VisitorSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.cache {
		for _, t := range s.Tags {
			if t == tag {
				return s.Clone()
			}
		}
	}
	return nil
}

// RemoveExpired sweeps the session cache, evicting entries whose expiresAt
// has passed. Returns the number evicted.
func (m *Manager) RemoveExpired() int {
	now := m.now()

	m.mu.Lock()
	evicted := 0
	for id, s := range m.cache {
		if s.ExpiresAt.Before(now) {
			delete(m.cache, id)
			evicted++
		}
	}
	m.mu.Unlock()

	if evicted > 0 {
		metrics.SessionsEvicted.Add(float64(evicted))
		m.logger.Debug("Evicted expired visitor sessions", zap.Int("count", evicted))
	}
	return evicted
}

func notify(listeners []Listener, snapshot *models.VisitorSession) {
	for _, l := range listeners {
		l(snapshot)
	}
}
