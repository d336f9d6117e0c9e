package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/metrics"
	"github.com/shelfwise/catalog-notifier/internal/repository"
)

// Maintenance runs the two outbox janitors on one ticker: moving exhausted
// undelivered events to the DLQ and pruning delivered events past retention.
// The predicates are disjoint, so a row is only ever touched by one of them.
type Maintenance struct {
	Outbox repository.OutboxRepository

	Interval       time.Duration
	Retention      time.Duration
	DLQMaxAttempts int
	DLQMaxAge      time.Duration

	log *zap.Logger
}

// NewMaintenance builds a maintenance worker with sane defaults.
func NewMaintenance(outbox repository.OutboxRepository, cfg config.MaintenanceConfig, log *zap.Logger) *Maintenance {
	m := &Maintenance{
		Outbox:         outbox,
		Interval:       cfg.Interval,
		Retention:      cfg.Retention,
		DLQMaxAttempts: cfg.DLQMaxAttempts,
		DLQMaxAge:      cfg.DLQMaxAge,
		log:            log,
	}
	if m.Interval <= 0 {
		m.Interval = time.Minute
	}
	if m.Retention <= 0 {
		m.Retention = 7 * 24 * time.Hour
	}
	if m.DLQMaxAttempts <= 0 {
		m.DLQMaxAttempts = 5
	}
	if m.DLQMaxAge <= 0 {
		m.DLQMaxAge = 24 * time.Hour
	}
	return m
}

// Run ticks until ctx is cancelled.
func (m *Maintenance) Run(ctx context.Context) error {
	tick := time.NewTicker(m.Interval)
	defer tick.Stop()

	for {
		if _, _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			m.log.Warn("maintenance pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

// RunOnce performs one pass and reports (migrated, pruned). Both janitors
// run even when the first fails. Both are safe to re-run.
func (m *Maintenance) RunOnce(ctx context.Context) (int64, int64, error) {
	migrated, dlqErr := m.Outbox.MigrateFailedToDLQ(ctx, m.DLQMaxAttempts, m.DLQMaxAge)
	if dlqErr == nil && migrated > 0 {
		metrics.EventsTotal.WithLabelValues("dlq_migrated").Add(float64(migrated))
		m.log.Info("undeliverable events moved to dlq", zap.Int64("count", migrated))
	}

	pruned, pruneErr := m.Outbox.PruneDelivered(ctx, m.Retention)
	if pruneErr == nil && pruned > 0 {
		metrics.EventsTotal.WithLabelValues("pruned").Add(float64(pruned))
		m.log.Info("delivered events pruned", zap.Int64("count", pruned))
	}

	return migrated, pruned, errors.Join(dlqErr, pruneErr)
}
