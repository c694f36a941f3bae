package session

import (
	"sync"

	"github.com/similie/hyphen-rtsp-tunnel/internal/capture"
)

// Manager is the process-wide session table, keyed by session id. The
// capture coordinator records only the id of the capturing session; the
// table is owned by the gateway lifecycle (C10) and handed to the loopback
// proxy (C5), which uses ActiveCapture to resolve that id to the live
// *Session.
type Manager struct {
	capture *capture.Coordinator

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty Manager backed by the given capture
// coordinator.
func NewManager(coord *capture.Coordinator) *Manager {
	return &Manager{
		capture:  coord,
		sessions: make(map[string]*Session),
	}
}

// Register adds s to the table.
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
}

// Unregister removes a session from the table.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ActiveCapture resolves the single session currently holding the capture
// slot, per the loopback proxy's accept-time binding rule. Returns false if
// no capture is in flight, the coordinator's session id isn't registered,
// or the session isn't (or is no longer) captureActive.
func (m *Manager) ActiveCapture() (*Session, bool) {
	inFlight, sessionID := m.capture.InFlight()
	if !inFlight {
		return nil, false
	}
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok || !s.CaptureActive() {
		return nil, false
	}
	return s, true
}
