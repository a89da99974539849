package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"cv-backend/internal/sections"
	"cv-backend/internal/shared/telemetry"
)

const defaultIdleTTL = 30 * time.Minute

// Manager owns at most one session per owner and expires idle ones.
type Manager struct {
	deps    Dependencies
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Dependencies, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &Manager{
		deps:     deps,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the owner's session, starting one hydrated from the snapshot
// cache when none is active.
func (m *Manager) Get(ctx context.Context, ownerID string) (*Session, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, sections.ErrUnauthenticated
	}
	now := m.now()

	m.mu.Lock()
	s, ok := m.sessions[ownerID]
	if ok && now.Sub(s.idleSince()) > m.idleTTL && !s.IsExporting() {
		delete(m.sessions, ownerID)
		ok = false
	}
	if ok {
		m.mu.Unlock()
		s.touch(now)
		return s, nil
	}
	s = newSession(m.deps, ownerID, now)
	m.sessions[ownerID] = s
	m.mu.Unlock()

	_, hydrated := s.Hydrate(ctx)
	telemetry.Info("session.started", map[string]any{"user_id": ownerID, "hydrated": hydrated})
	return s, nil
}

// End drops the owner's session. The snapshot cache is kept for the next start.
func (m *Manager) End(ownerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[ownerID]; !ok {
		return false
	}
	delete(m.sessions, ownerID)
	return true
}

// Sweep removes sessions idle longer than the TTL and returns how many went.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for owner, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.idleTTL && !s.IsExporting() {
			delete(m.sessions, owner)
			removed++
		}
	}
	return removed
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps on every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				telemetry.Info("session.swept", map[string]any{"expired": n, "active": m.Len()})
			}
		}
	}
}
