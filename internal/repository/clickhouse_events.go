package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

// EventHistoryFilter narrows reads of the delivered-event archive.
type EventHistoryFilter struct {
	OrgID     *uuid.UUID
	EntityID  string
	EventType string
}

// CHEventsRepository stores and reads delivered events in ClickHouse.
type CHEventsRepository interface {
	// InsertBatch appends rows in one insert block.
	InsertBatch(ctx context.Context, events []model.ArchivedEvent) error
	List(ctx context.Context, f EventHistoryFilter, limit, offset int) ([]model.ArchivedEvent, error)
}

type chEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEventsRepository(ch *sqlx.DB) CHEventsRepository {
	return &chEventsRepository{ch: ch}
}

func (r *chEventsRepository) InsertBatch(ctx context.Context, events []model.ArchivedEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO events_history
		    (event_id, organization_id, event_type, entity_type, entity_id, event_data, created_at, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.EventID, ev.OrgID.String(), ev.EventType, ev.EntityType, ev.EntityID,
			ev.EventData, ev.CreatedAt, ev.DeliveredAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *chEventsRepository) List(ctx context.Context, f EventHistoryFilter, limit, offset int) ([]model.ArchivedEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT event_id, organization_id, event_type, entity_type, entity_id, event_data, created_at, delivered_at
		FROM events_history
		WHERE 1 = 1
	`
	args := []any{}

	if f.OrgID != nil {
		q += " AND organization_id = ?"
		args = append(args, f.OrgID.String())
	}
	if f.EntityID != "" {
		q += " AND entity_id = ?"
		args = append(args, f.EntityID)
	}
	if f.EventType != "" {
		q += " AND event_type = ?"
		args = append(args, f.EventType)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.ArchivedEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
