package push

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker implements Publisher and Subscriber over Redis pub/sub.
type RedisBroker struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisBroker(rdb *redis.Client, log *zap.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, log: log}
}

var (
	_ Publisher  = (*RedisBroker)(nil)
	_ Subscriber = (*RedisBroker)(nil)
)

func (b *RedisBroker) Publish(ctx context.Context, orgID uuid.UUID, payload []byte) error {
	return b.rdb.Publish(ctx, ChannelFor(orgID), payload).Err()
}

// Subscribe attaches to the tenant's channel. It returns only after the
// broker confirms the subscription, so the first status is StatusSubscribed.
func (b *RedisBroker) Subscribe(ctx context.Context, orgID uuid.UUID) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, ChannelFor(orgID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{
		ps:     ps,
		events: make(chan []byte, 64),
		status: make(chan Status, 4),
		done:   make(chan struct{}),
		log:    b.log.With(zap.String("channel", ChannelFor(orgID))),
	}
	sub.status <- StatusSubscribed
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan []byte
	status chan Status
	done   chan struct{}
	once   sync.Once
	log    *zap.Logger
}

func (s *redisSubscription) Events() <-chan []byte { return s.events }
func (s *redisSubscription) Status() <-chan Status { return s.status }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// pump moves broker messages onto the events channel until the subscription
// ends, then reports the terminal status and closes both channels.
func (s *redisSubscription) pump() {
	ch := s.ps.Channel()
loop:
	for msg := range ch {
		select {
		case s.events <- []byte(msg.Payload):
		case <-s.done:
			break loop
		}
	}

	terminal := StatusError
	select {
	case <-s.done:
		terminal = StatusClosed
	default:
		s.log.Warn("push subscription ended unexpectedly")
	}
	select {
	case s.status <- terminal:
	default:
	}
	close(s.events)
	close(s.status)
}
