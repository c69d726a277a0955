package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"frauddet/backend/services/prediction-stream/internal/metrics"
)

// ErrManagerClosed is returned by Add once shutdown has begun.
var ErrManagerClosed = errors.New("ws: manager closed")

// Manager tracks open sessions and keeps them alive.
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	closed       bool
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewManager builds session manager.
func NewManager(pingInterval time.Duration, logger *zap.Logger) *Manager {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Add registers new session.
func (m *Manager) Add(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.sessions[session.ID()] = session
	metrics.SessionsTotal.Inc()
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return nil
}

// Remove removes session.
func (m *Manager) Remove(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.sessions[session.ID()]; ok && current == session {
		delete(m.sessions, session.ID())
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start begins ping loop to keep sessions active.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, session := range m.snapshot() {
				if err := session.Ping(); err != nil {
					m.logger.Debug("ping failed", zap.String("session_id", session.ID()), zap.Error(err))
				}
			}
		}
	}
}

// Shutdown stops accepting sessions, asks every open session to close and
// waits for them. Sessions still open when ctx expires are dropped.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	sessions := m.snapshot()
	for _, session := range sessions {
		if err := session.Shutdown(websocket.CloseGoingAway, "server shutting down"); err != nil {
			_ = session.Close()
		}
	}

	for _, session := range sessions {
		select {
		case <-session.Done():
		case <-ctx.Done():
			m.logger.Warn("session did not close in time", zap.String("session_id", session.ID()))
			_ = session.Close()
			<-session.Done()
		}
	}
	m.logger.Info("all sessions closed", zap.Int("count", len(sessions)))
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}
