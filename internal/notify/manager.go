package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/push"
)

// Manager owns at most one live session and serializes tenant switches. The
// outgoing tenant's session is fully torn down before the next tenant's
// subscription opens, so no event can leak across tenants.
type Manager struct {
	subscriber  push.Subscriber
	notifier    Notifier
	invalidator CacheInvalidator
	cfg         Config
	log         *zap.Logger

	mu      sync.Mutex
	current *Session
}

func NewManager(subscriber push.Subscriber, notifier Notifier, invalidator CacheInvalidator, cfg Config, log *zap.Logger) *Manager {
	return &Manager{
		subscriber:  subscriber,
		notifier:    notifier,
		invalidator: invalidator,
		cfg:         cfg,
		log:         log,
	}
}

// Switch attaches the manager to a tenant. Switching to the tenant that is
// already attached is a no-op and returns the existing session.
func (m *Manager) Switch(ctx context.Context, orgID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.OrgID() == orgID {
		return m.current, nil
	}
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}

	s, err := Open(ctx, orgID, m.subscriber, m.notifier, m.invalidator, m.cfg, m.log)
	if err != nil {
		return nil, err
	}
	m.current = s
	return s, nil
}

// Current returns the attached session, or nil when detached.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close tears down the attached session, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}
