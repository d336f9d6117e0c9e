// Package notify implements the client side of the push pipeline: a
// per-tenant session that consumes the tenant's push channel, debounces
// event bursts into batches, renders them as toasts and invalidates the
// jobs query cache once per flush.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/push"
)

// ConnectionState is the session's externally visible lifecycle.
type ConnectionState string

const (
	StateConnecting ConnectionState = "connecting"
	StateConnected  ConnectionState = "connected"
	StateSyncing    ConnectionState = "syncing"
	StateSynced     ConnectionState = "synced"
	StateError      ConnectionState = "error"
)

// Notifier renders toasts for the host application. Show is called from the
// session goroutine and must not block.
type Notifier interface {
	Show(t Toast)
}

// CacheInvalidator invalidates one of the host application's query caches.
// The session calls it exactly once per flushed batch, always with
// QueryKeyCatalogingJobs.
type CacheInvalidator interface {
	Invalidate(key string)
}

// Config carries the session timing knobs.
type Config struct {
	// DebounceWindow is how long the session waits after the last event
	// before flushing the batch. Every event re-arms the full window.
	DebounceWindow time.Duration
	// SyncedCooldown is how long the session stays in StateSynced after a
	// flush before settling back to StateConnected.
	SyncedCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 2 * time.Second
	}
	if c.SyncedCooldown <= 0 {
		c.SyncedCooldown = 2 * time.Second
	}
	return c
}

// Session consumes one tenant's push channel. All Notifier and
// CacheInvalidator calls happen on the session goroutine, and none happen
// after Close returns.
type Session struct {
	orgID       uuid.UUID
	sub         push.Subscription
	notifier    Notifier
	invalidator CacheInvalidator
	cfg         Config
	log         *zap.Logger

	mu    sync.Mutex
	state ConnectionState

	done     chan struct{}
	closing  sync.Once
	loopDone chan struct{}
}

// Open subscribes to the tenant's channel and starts the session loop. The
// context bounds the subscribe handshake only, not the session lifetime.
func Open(ctx context.Context, orgID uuid.UUID, subscriber push.Subscriber, notifier Notifier, invalidator CacheInvalidator, cfg Config, log *zap.Logger) (*Session, error) {
	if notifier == nil {
		return nil, errors.New("notify: nil Notifier")
	}
	if invalidator == nil {
		return nil, errors.New("notify: nil CacheInvalidator")
	}
	sub, err := subscriber.Subscribe(ctx, orgID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		orgID:       orgID,
		sub:         sub,
		notifier:    notifier,
		invalidator: invalidator,
		cfg:         cfg.withDefaults(),
		log:         log.With(zap.String("organization_id", orgID.String())),
		state:       StateConnecting,
		done:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *Session) OrgID() uuid.UUID { return s.orgID }

func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(next ConnectionState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		s.log.Debug("session state changed", zap.String("from", string(prev)), zap.String("to", string(next)))
	}
}

// Close cancels any pending debounce window, detaches from the channel and
// waits for the session goroutine to exit. Safe to call more than once.
func (s *Session) Close() {
	s.closing.Do(func() {
		close(s.done)
		if err := s.sub.Close(); err != nil {
			s.log.Warn("subscription close failed", zap.Error(err))
		}
	})
	<-s.loopDone
}

func (s *Session) run() {
	defer close(s.loopDone)

	debounce := newStoppedTimer()
	defer debounce.Stop()
	cooldown := newStoppedTimer()
	defer cooldown.Stop()

	var batch *Batch
	events := s.sub.Events()
	status := s.sub.Status()

	for {
		select {
		case <-s.done:
			return

		case st, ok := <-status:
			if !ok {
				status = nil
				continue
			}
			switch st {
			case push.StatusSubscribed:
				if st := s.State(); st == StateConnecting || st == StateError {
					s.setState(StateConnected)
				}
			default:
				batch = s.enterError(batch, debounce, cooldown)
			}

		case raw, ok := <-events:
			if !ok {
				events = nil
				batch = s.enterError(batch, debounce, cooldown)
				continue
			}
			if s.State() == StateError {
				continue
			}
			if batch == nil {
				batch = NewBatch(time.Now())
			}
			batch.Add(decodeEvent(raw))
			s.setState(StateSyncing)
			resetTimer(debounce, s.cfg.DebounceWindow)

		case <-debounce.C:
			if batch == nil {
				continue
			}
			flushed := batch
			batch = nil
			s.flush(flushed)
			s.setState(StateSynced)
			resetTimer(cooldown, s.cfg.SyncedCooldown)

		case <-cooldown.C:
			if s.State() == StateSynced {
				s.setState(StateConnected)
			}
		}
	}
}

// enterError discards the pending window. Events that arrive while the
// session is in StateError are dropped, not queued.
func (s *Session) enterError(batch *Batch, debounce, cooldown *time.Timer) *Batch {
	stopTimer(debounce)
	stopTimer(cooldown)
	if batch != nil {
		s.log.Warn("discarding pending batch on channel error", zap.Int("events", batch.Size()))
	}
	s.setState(StateError)
	return nil
}

func (s *Session) flush(b *Batch) {
	toasts := BuildToasts(b)
	for _, t := range toasts {
		s.safeShow(t)
	}
	s.safeInvalidate()
	s.log.Debug("flushed batch",
		zap.Int("events", b.Size()),
		zap.Int("toasts", len(toasts)),
		zap.Duration("window", time.Since(b.StartedAt)),
	)
}

// safeShow and safeInvalidate contain host callback panics so a broken
// rendering layer cannot kill the session goroutine.
func (s *Session) safeShow(t Toast) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("notifier panicked", zap.Any("panic", r))
		}
	}()
	s.notifier.Show(t)
}

func (s *Session) safeInvalidate() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("cache invalidator panicked", zap.Any("panic", r))
		}
	}()
	s.invalidator.Invalidate(QueryKeyCatalogingJobs)
}

// newStoppedTimer returns a timer that will not fire until reset.
func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	stopTimer(t)
	return t
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
