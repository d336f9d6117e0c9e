package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/metrics"
	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/push"
	"github.com/shelfwise/catalog-notifier/internal/repository"
)

// Firehose is the optional analytics sink for confirmed deliveries. Firehose
// errors are droppable: delivery state never depends on it.
type Firehose interface {
	Emit(ctx context.Context, ev model.DeliveredEvent) error
}

// Relay drains the outbox. Each cycle it visits every tenant with
// deliverable events, publishes them to the tenant's push channel in
// insertion order, then stamps them delivered and advances the consumer
// cursor. Publish happens before the delivery mark, so a crash between the
// two redelivers the event: consumers must tolerate duplicates.
type Relay struct {
	Outbox   repository.OutboxRepository
	Push     push.Publisher
	Firehose Firehose // optional

	ConsumerID   string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int

	cycle uint64
	log   *zap.Logger
}

// NewRelay builds a relay with sane defaults.
func NewRelay(outbox repository.OutboxRepository, publisher push.Publisher, firehose Firehose, cfg config.RelayConfig, log *zap.Logger) *Relay {
	r := &Relay{
		Outbox:       outbox,
		Push:         publisher,
		Firehose:     firehose,
		ConsumerID:   cfg.ConsumerID,
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		MaxAttempts:  cfg.MaxAttempts,
		log:          log,
	}
	if r.ConsumerID == "" {
		r.ConsumerID = "push-relay"
	}
	if r.PollInterval <= 0 {
		r.PollInterval = 2 * time.Second
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 100
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 5
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	tick := time.NewTicker(r.PollInterval)
	defer tick.Stop()

	for {
		if _, err := r.Cycle(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("relay cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

// Cycle visits every tenant with deliverable events once and returns the
// number of events delivered. The starting tenant rotates between cycles;
// a failing tenant stops its own queue for this cycle and never blocks the
// others.
func (r *Relay) Cycle(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.RelayCycleSeconds.Observe(time.Since(start).Seconds()) }()

	tenants, err := r.Outbox.ListTenantsWithUndelivered(ctx, r.MaxAttempts)
	if err != nil {
		return 0, err
	}
	tenants = r.rotate(tenants)

	delivered := 0
	for _, org := range tenants {
		n, err := r.deliverTenant(ctx, org)
		delivered += n
		if err != nil {
			r.log.Warn("tenant delivery stopped",
				zap.String("organization_id", org.String()),
				zap.Int("delivered", n),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
	}
	return delivered, nil
}

// rotate shifts the start of the tenant list one position further each cycle.
func (r *Relay) rotate(tenants []uuid.UUID) []uuid.UUID {
	if len(tenants) == 0 {
		return tenants
	}
	off := int(r.cycle % uint64(len(tenants)))
	r.cycle++
	if off == 0 {
		return tenants
	}
	out := make([]uuid.UUID, 0, len(tenants))
	out = append(out, tenants[off:]...)
	return append(out, tenants[:off]...)
}

// deliverTenant pushes the tenant's oldest deliverable events in id order,
// stopping at the first failure so later events cannot overtake earlier ones.
func (r *Relay) deliverTenant(ctx context.Context, orgID uuid.UUID) (int, error) {
	events, err := r.Outbox.ListUndelivered(ctx, orgID, r.MaxAttempts, r.BatchSize)
	if err != nil {
		return 0, err
	}

	for i := range events {
		ev := &events[i]

		payload, err := json.Marshal(ev)
		if err != nil {
			// Unserializable event: record the attempt and stop the queue.
			_ = r.Outbox.MarkDeliveryFailure(ctx, ev.ID, "marshal: "+err.Error())
			metrics.EventsTotal.WithLabelValues("publish_failed").Inc()
			return i, err
		}

		if err := r.Push.Publish(ctx, orgID, payload); err != nil {
			if ferr := r.Outbox.MarkDeliveryFailure(ctx, ev.ID, err.Error()); ferr != nil {
				r.log.Error("recording delivery failure failed", zap.Int64("event_id", ev.ID), zap.Error(ferr))
			}
			metrics.EventsTotal.WithLabelValues("publish_failed").Inc()
			return i, err
		}

		deliveredAt := time.Now().UTC()
		if err := r.Outbox.MarkDelivered(ctx, ev, r.ConsumerID, deliveredAt); err != nil {
			// The publish went out but the mark did not stick; the event
			// stays undelivered and is pushed again next cycle.
			metrics.EventsTotal.WithLabelValues("state_write_failed").Inc()
			return i, err
		}
		metrics.EventsTotal.WithLabelValues("published").Inc()

		r.emitFirehose(ctx, ev, deliveredAt)
	}
	return len(events), nil
}

func (r *Relay) emitFirehose(ctx context.Context, ev *model.OutboxEvent, deliveredAt time.Time) {
	if r.Firehose == nil {
		return
	}
	env := model.DeliveredEvent{OutboxEvent: *ev, DeliveredAt: deliveredAt}
	if err := r.Firehose.Emit(ctx, env); err != nil {
		metrics.EventsTotal.WithLabelValues("firehose_dropped").Inc()
		r.log.Debug("firehose emit dropped", zap.Int64("event_id", ev.ID), zap.Error(err))
	}
}
