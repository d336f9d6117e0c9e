package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/kafka"
	"github.com/shelfwise/catalog-notifier/internal/metrics"
	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/repository"
)

// EventSource is the consumer side of the firehose topic.
type EventSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Archiver drains the firehose topic into the ClickHouse history table:
// - fetches delivered-event envelopes from Kafka,
// - batches rows by size and time,
// - commits offsets only after the insert lands (at-least-once; the
//   history table tolerates the occasional duplicate row).
type Archiver struct {
	Source EventSource
	Events repository.CHEventsRepository

	BatchSize int
	BatchWait time.Duration

	log *zap.Logger
}

// NewArchiver builds an archiver with sane defaults.
func NewArchiver(source EventSource, events repository.CHEventsRepository, cfg config.ArchiverConfig, log *zap.Logger) *Archiver {
	a := &Archiver{
		Source:    source,
		Events:    events,
		BatchSize: cfg.BatchSize,
		BatchWait: cfg.BatchWait,
		log:       log,
	}
	if a.BatchSize <= 0 {
		a.BatchSize = 200
	}
	if a.BatchWait <= 0 {
		a.BatchWait = 300 * time.Millisecond
	}
	return a
}

// Run consumes until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	msgCh := make(chan kafka.Message, a.BatchSize)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			m, err := a.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				a.log.Warn("firehose fetch failed", zap.Error(err))
				time.Sleep(200 * time.Millisecond)
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	tick := time.NewTicker(a.BatchWait)
	defer tick.Stop()

	rows := make([]model.ArchivedEvent, 0, a.BatchSize)
	pending := make([]kafka.Message, 0, a.BatchSize)

	flush := func() {
		if len(rows) == 0 {
			return
		}
		if err := a.Events.InsertBatch(ctx, rows); err != nil {
			// Keep the batch; offsets stay uncommitted until the insert lands.
			a.log.Warn("archive insert failed", zap.Int("rows", len(rows)), zap.Error(err))
			return
		}
		if err := a.Source.Commit(ctx, pending...); err != nil {
			a.log.Warn("offset commit failed", zap.Error(err))
		}
		metrics.EventsTotal.WithLabelValues("archived").Add(float64(len(rows)))
		a.log.Debug("archived batch", zap.Int("rows", len(rows)))
		rows = rows[:0]
		pending = pending[:0]
	}

	for {
		in := msgCh
		if len(rows) >= a.BatchSize*4 {
			in = nil // sink is down; stop draining until a flush lands
		}

		select {
		case <-ctx.Done():
			flush()
			return nil

		case m, ok := <-in:
			if !ok {
				flush()
				return nil
			}
			var ev model.DeliveredEvent
			if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == 0 {
				// poison → commit, skip
				_ = a.Source.Commit(ctx, m)
				a.log.Warn("dropping malformed firehose message", zap.Error(err))
				continue
			}
			rows = append(rows, ev.Archived())
			pending = append(pending, m)
			if len(rows) >= a.BatchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}
