package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

// OutboxRepository defines persistence for outbox_events: transactional event
// capture, relay reads, delivery bookkeeping, and the two maintenance
// operations.
type OutboxRepository interface {
	// Insert writes a single outbox event and fills in its assigned id and
	// created_at. If tx is nil, it will open/commit an internal transaction;
	// otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, ev *model.OutboxEvent) error

	// ListTenantsWithUndelivered returns organizations that have deliverable
	// events waiting. Events at or past maxAttempts are left for the DLQ
	// migrator and do not count.
	ListTenantsWithUndelivered(ctx context.Context, maxAttempts int) ([]uuid.UUID, error)

	// ListUndelivered returns up to limit deliverable events for one tenant,
	// oldest first (id order).
	ListUndelivered(ctx context.Context, orgID uuid.UUID, maxAttempts, limit int) ([]model.OutboxEvent, error)

	// MarkDelivered stamps delivered_at on the event and advances the
	// consumer's cursor, in one transaction. The cursor never moves backwards.
	MarkDelivered(ctx context.Context, ev *model.OutboxEvent, consumerID string, at time.Time) error

	// MarkDeliveryFailure increments attempts and records the publish error.
	MarkDeliveryFailure(ctx context.Context, id int64, cause string) error

	// MigrateFailedToDLQ atomically moves undelivered events that reached
	// maxAttempts or are older than maxAge into outbox_dlq, preserving
	// attempts, last_error and the original created_at. Returns the number of
	// moved events. Safe to re-run.
	MigrateFailedToDLQ(ctx context.Context, maxAttempts int, maxAge time.Duration) (int64, error)

	// PruneDelivered deletes delivered events created before the retention
	// window. Undelivered rows are never touched. Returns the number of
	// deleted events. Safe to re-run.
	PruneDelivered(ctx context.Context, retention time.Duration) (int64, error)
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *OutboxRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, ev *model.OutboxEvent) error {
	const q = `
		INSERT INTO outbox_events (organization_id, event_type, entity_type, entity_id, event_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, q,
			ev.OrgID, ev.EventType, ev.EntityType, ev.EntityID, ev.EventData,
		).Scan(&ev.ID, &ev.CreatedAt)
	})
}

func (r *OutboxRepositoryImpl) ListTenantsWithUndelivered(ctx context.Context, maxAttempts int) ([]uuid.UUID, error) {
	const q = `
		SELECT DISTINCT organization_id
		  FROM outbox_events
		 WHERE delivered_at IS NULL AND attempts < $1
		 ORDER BY organization_id
	`
	var orgs []uuid.UUID
	if err := r.db.SelectContext(ctx, &orgs, q, maxAttempts); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *OutboxRepositoryImpl) ListUndelivered(ctx context.Context, orgID uuid.UUID, maxAttempts, limit int) ([]model.OutboxEvent, error) {
	const q = `
		SELECT id, organization_id, event_type, entity_type, entity_id, event_data,
		       attempts, last_error, created_at, delivered_at
		  FROM outbox_events
		 WHERE organization_id = $1 AND delivered_at IS NULL AND attempts < $2
		 ORDER BY id
		 LIMIT $3
	`
	var events []model.OutboxEvent
	if err := r.db.SelectContext(ctx, &events, q, orgID, maxAttempts, limit); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *OutboxRepositoryImpl) MarkDelivered(ctx context.Context, ev *model.OutboxEvent, consumerID string, at time.Time) error {
	const markQ = `
		UPDATE outbox_events
		   SET delivered_at = $2
		 WHERE id = $1 AND delivered_at IS NULL
	`
	return r.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, markQ, ev.ID, at); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, upsertCursorQuery, ev.OrgID, consumerID, ev.ID, at)
		return err
	})
}

func (r *OutboxRepositoryImpl) MarkDeliveryFailure(ctx context.Context, id int64, cause string) error {
	const q = `
		UPDATE outbox_events
		   SET attempts = attempts + 1, last_error = $2
		 WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, q, id, cause)
	return err
}

func (r *OutboxRepositoryImpl) MigrateFailedToDLQ(ctx context.Context, maxAttempts int, maxAge time.Duration) (int64, error) {
	const q = `
		WITH moved AS (
		    DELETE FROM outbox_events
		     WHERE delivered_at IS NULL
		       AND (attempts >= $1 OR created_at < $2)
		 RETURNING id, organization_id, event_type, entity_type, entity_id, event_data,
		           attempts, last_error, created_at
		)
		INSERT INTO outbox_dlq
		    (event_id, organization_id, event_type, entity_type, entity_id, event_data,
		     fail_reason, last_error, attempts, event_created_at)
		SELECT id, organization_id, event_type, entity_type, entity_id, event_data,
		       CASE WHEN attempts >= $1 THEN 'max_attempts' ELSE 'max_age' END,
		       last_error, attempts, created_at
		  FROM moved
	`
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := r.db.ExecContext(ctx, q, maxAttempts, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *OutboxRepositoryImpl) PruneDelivered(ctx context.Context, retention time.Duration) (int64, error) {
	const q = `
		DELETE FROM outbox_events
		 WHERE delivered_at IS NOT NULL AND created_at < $1
	`
	cutoff := time.Now().UTC().Add(-retention)
	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
