// Session contexts: each browser session owns one gallery
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "photo-booth/internal/errors"
	"photo-booth/internal/gallery"
)

// Session is the per-visitor context passed to every operation. Nothing
// in it is shared with other sessions.
type Session struct {
	ID        string
	Gallery   *gallery.Gallery
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the last lookup
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Manager creates, finds and expires sessions
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	ttl         time.Duration
	galleryOpts []gallery.Option
	logger      logrus.FieldLogger
	now         func() time.Time

	// OnExpire runs after a session is removed by Sweep or Delete
	OnExpire func(id string)
}

// NewManager builds a manager whose sessions expire after ttl of
// inactivity. A zero ttl disables expiry.
func NewManager(ttl time.Duration, logger logrus.FieldLogger, galleryOpts ...gallery.Option) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		galleryOpts: galleryOpts,
		logger:      logger,
		now:         time.Now,
	}
}

// Create starts a new session with an empty gallery
func (m *Manager) Create() *Session {
	now := m.now()
	s := &Session{
		ID:        uuid.New().String(),
		Gallery:   gallery.New(m.galleryOpts...),
		CreatedAt: now,
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"session_id": s.ID,
		"sessions":   count,
	}).Info("Session created")
	return s
}

// Get finds a live session and refreshes its idle timer
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrSessionNotFound.With("session_id", id)
	}
	s.touch(m.now())
	return s, nil
}

// Delete ends a session. It reports whether the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.logger.WithField("session_id", id).Info("Session ended")
		if m.OnExpire != nil {
			m.OnExpire(id)
		}
	}
	return ok
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the ttl and returns how
// many were removed
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.ttl)
	var expired []string

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.logger.WithField("session_id", id).Info("Session expired")
		if m.OnExpire != nil {
			m.OnExpire(id)
		}
	}
	return len(expired)
}

// Run sweeps periodically until ctx is cancelled
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.WithField("expired", n).Debug("Session sweep finished")
			}
		}
	}
}
