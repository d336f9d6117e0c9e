package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

// DLQRepository inspects dead-lettered events. Rows get here only through
// OutboxRepository.MigrateFailedToDLQ; replay is a manual operation.
type DLQRepository interface {
	// List returns DLQ events newest first. orgID nil means all tenants.
	List(ctx context.Context, orgID *uuid.UUID, limit, offset int) ([]model.DLQEvent, error)
	Count(ctx context.Context, orgID *uuid.UUID) (int64, error)
}

type DLQRepositoryImpl struct {
	db *sqlx.DB
}

func NewDLQRepository(db *sqlx.DB) *DLQRepositoryImpl {
	return &DLQRepositoryImpl{db: db}
}

var _ DLQRepository = (*DLQRepositoryImpl)(nil)

func (r *DLQRepositoryImpl) List(ctx context.Context, orgID *uuid.UUID, limit, offset int) ([]model.DLQEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, event_id, organization_id, event_type, entity_type, entity_id,
		       event_data, fail_reason, last_error, attempts, event_created_at, migrated_at
		  FROM outbox_dlq
	`
	args := []any{}
	if orgID != nil {
		q += ` WHERE organization_id = $1 ORDER BY migrated_at DESC, id DESC LIMIT $2 OFFSET $3`
		args = append(args, *orgID, limit, offset)
	} else {
		q += ` ORDER BY migrated_at DESC, id DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	var rows []model.DLQEvent
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DLQRepositoryImpl) Count(ctx context.Context, orgID *uuid.UUID) (int64, error) {
	var n int64
	if orgID != nil {
		err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM outbox_dlq WHERE organization_id = $1`, *orgID)
		return n, err
	}
	err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM outbox_dlq`)
	return n, err
}
