package model

import (
	"time"

	"github.com/google/uuid"
)

// Cursor tracks one consumer's delivery progress within one tenant's event
// stream. Forward-only: last_event_id never decreases.
type Cursor struct {
	OrgID           uuid.UUID `db:"organization_id" json:"organization_id"`
	ConsumerID      string    `db:"consumer_id" json:"consumer_id"`
	LastEventID     int64     `db:"last_event_id" json:"last_event_id"`
	LastDeliveredAt time.Time `db:"last_delivered_at" json:"last_delivered_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
