package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

// upsertCursorQuery advances a consumer cursor, creating it on first use.
// GREATEST keeps the cursor forward-only under redelivery and manual writes.
const upsertCursorQuery = `
	INSERT INTO outbox_cursors (organization_id, consumer_id, last_event_id, last_delivered_at, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (organization_id, consumer_id) DO UPDATE
	   SET last_event_id     = GREATEST(outbox_cursors.last_event_id, EXCLUDED.last_event_id),
	       last_delivered_at = EXCLUDED.last_delivered_at,
	       updated_at        = now()
`

// CursorsRepository reads and advances per-tenant consumer cursors. The relay
// advances its own cursor through OutboxRepository.MarkDelivered; this
// interface serves the ops surface and external consumers.
type CursorsRepository interface {
	// Get returns the cursor, or nil when the consumer has never advanced.
	Get(ctx context.Context, orgID uuid.UUID, consumerID string) (*model.Cursor, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Cursor, error)
	// Advance moves the cursor forward and returns the resulting row. Requests
	// behind the current position are no-ops that return the unchanged cursor.
	Advance(ctx context.Context, orgID uuid.UUID, consumerID string, eventID int64, at time.Time) (*model.Cursor, error)
}

type CursorsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCursorsRepository(db *sqlx.DB) *CursorsRepositoryImpl {
	return &CursorsRepositoryImpl{db: db}
}

var _ CursorsRepository = (*CursorsRepositoryImpl)(nil)

func (r *CursorsRepositoryImpl) Get(ctx context.Context, orgID uuid.UUID, consumerID string) (*model.Cursor, error) {
	const q = `
		SELECT organization_id, consumer_id, last_event_id, last_delivered_at, updated_at
		  FROM outbox_cursors
		 WHERE organization_id = $1 AND consumer_id = $2
	`
	var c model.Cursor
	err := r.db.GetContext(ctx, &c, q, orgID, consumerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CursorsRepositoryImpl) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Cursor, error) {
	const q = `
		SELECT organization_id, consumer_id, last_event_id, last_delivered_at, updated_at
		  FROM outbox_cursors
		 WHERE organization_id = $1
		 ORDER BY consumer_id
	`
	var cursors []model.Cursor
	if err := r.db.SelectContext(ctx, &cursors, q, orgID); err != nil {
		return nil, err
	}
	return cursors, nil
}

func (r *CursorsRepositoryImpl) Advance(ctx context.Context, orgID uuid.UUID, consumerID string, eventID int64, at time.Time) (*model.Cursor, error) {
	q := upsertCursorQuery + `
	RETURNING organization_id, consumer_id, last_event_id, last_delivered_at, updated_at`
	var c model.Cursor
	if err := r.db.GetContext(ctx, &c, q, orgID, consumerID, eventID, at); err != nil {
		return nil, err
	}
	return &c, nil
}
