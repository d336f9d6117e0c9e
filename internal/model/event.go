package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityTypeCatalogingJob labels events captured from the cataloging_jobs table.
const EntityTypeCatalogingJob = "cataloging_job"

type EventType string

const (
	EventJobCreated   EventType = "cataloging_job_created"
	EventJobUpdated   EventType = "cataloging_job_updated"
	EventJobCompleted EventType = "cataloging_job_completed"
	EventJobFailed    EventType = "cataloging_job_failed"
	EventJobDeleted   EventType = "cataloging_job_deleted"
)

func (t EventType) String() string {
	return string(t)
}

func (t EventType) Valid() bool {
	switch t {
	case EventJobCreated, EventJobUpdated, EventJobCompleted, EventJobFailed, EventJobDeleted:
		return true
	}
	return false
}

// OutboxEvent is the DB entity persisted in outbox_events. Its JSON shape is
// the wire contract pushed to subscribers; delivery bookkeeping columns
// (attempts, last_error, delivered_at) never leave the server.
type OutboxEvent struct {
	ID          int64           `db:"id" json:"id"`
	OrgID       uuid.UUID       `db:"organization_id" json:"organization_id"`
	EventType   string          `db:"event_type" json:"event_type"`
	EntityType  string          `db:"entity_type" json:"entity_type"`
	EntityID    string          `db:"entity_id" json:"entity_id"`
	EventData   json.RawMessage `db:"event_data" json:"event_data,omitempty"`
	Attempts    int             `db:"attempts" json:"-"`
	LastError   *string         `db:"last_error" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	DeliveredAt *time.Time      `db:"delivered_at" json:"-"`
}

// EventPayload is the decoded event_data document. One concrete variant per
// entity type; unrecognized entity types decode to UnknownPayload so new
// producers do not break old consumers.
type EventPayload interface {
	isEventPayload()
}

// JobPayload is the snapshot carried by cataloging job events: the tracked
// columns plus the row operation that produced the event.
type JobPayload struct {
	Status      string     `json:"status,omitempty"`
	SourceType  string     `json:"source_type,omitempty"`
	Operation   string     `json:"operation,omitempty"` // insert|update|delete
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// UnknownPayload preserves the raw document of an unrecognized entity type.
type UnknownPayload struct {
	Raw json.RawMessage
}

func (JobPayload) isEventPayload()     {}
func (UnknownPayload) isEventPayload() {}

// DecodePayload returns the typed payload for the event's entity type.
func (e *OutboxEvent) DecodePayload() EventPayload {
	switch e.EntityType {
	case EntityTypeCatalogingJob:
		var p JobPayload
		if err := json.Unmarshal(e.EventData, &p); err == nil {
			return p
		}
	}
	return UnknownPayload{Raw: e.EventData}
}

// DeliveredEvent is the envelope produced to the analytics firehose after a
// confirmed push delivery. The outer DeliveredAt shadows the embedded field
// that is hidden from the push payload.
type DeliveredEvent struct {
	OutboxEvent
	DeliveredAt time.Time `json:"delivered_at"`
}

// ArchivedEvent is the ClickHouse projection of a delivered event.
type ArchivedEvent struct {
	EventID     int64     `db:"event_id" json:"event_id"`
	OrgID       uuid.UUID `db:"organization_id" json:"organization_id"`
	EventType   string    `db:"event_type" json:"event_type"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	EventData   string    `db:"event_data" json:"event_data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	DeliveredAt time.Time `db:"delivered_at" json:"delivered_at"`
}

// Archived converts the firehose envelope into its ClickHouse row.
func (d *DeliveredEvent) Archived() ArchivedEvent {
	return ArchivedEvent{
		EventID:     d.ID,
		OrgID:       d.OrgID,
		EventType:   d.EventType,
		EntityType:  d.EntityType,
		EntityID:    d.EntityID,
		EventData:   string(d.EventData),
		CreatedAt:   d.CreatedAt,
		DeliveredAt: d.DeliveredAt,
	}
}
