package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	FailReasonMaxAttempts = "max_attempts"
	FailReasonMaxAge      = "max_age"
)

// DLQEvent is an undeliverable event moved out of outbox_events. It keeps the
// full event copy plus the failure bookkeeping so operators can inspect and
// replay by hand.
type DLQEvent struct {
	ID             int64           `db:"id" json:"id"`
	EventID        int64           `db:"event_id" json:"event_id"`
	OrgID          uuid.UUID       `db:"organization_id" json:"organization_id"`
	EventType      string          `db:"event_type" json:"event_type"`
	EntityType     string          `db:"entity_type" json:"entity_type"`
	EntityID       string          `db:"entity_id" json:"entity_id"`
	EventData      json.RawMessage `db:"event_data" json:"event_data,omitempty"`
	FailReason     string          `db:"fail_reason" json:"fail_reason"` // max_attempts|max_age
	LastError      *string         `db:"last_error" json:"last_error,omitempty"`
	Attempts       int             `db:"attempts" json:"attempts"`
	EventCreatedAt time.Time       `db:"event_created_at" json:"event_created_at"`
	MigratedAt     time.Time       `db:"migrated_at" json:"migrated_at"`
}
