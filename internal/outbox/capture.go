// Package outbox derives events from row changes on the watched table. The
// database trigger installed by migrations is the default producer; Capture
// is the application-side equivalent for deployments that cannot install
// triggers. Both apply identical rules, so exactly one of them must be
// active for a given table.
package outbox

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

// Operation is the row-level change kind feeding the capture.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Capture modes selected by config.
const (
	ModeTrigger = "trigger"
	ModeApp     = "app"
)

// DefaultTrackedFields matches the allowlist baked into the database trigger.
var DefaultTrackedFields = []string{"status", "completed_at", "finalized_at"}

// Capture derives outbox events from row images of the watched table.
type Capture struct {
	tracked []string
}

func NewCapture(trackedFields []string) *Capture {
	if len(trackedFields) == 0 {
		trackedFields = DefaultTrackedFields
	}
	fields := make([]string, len(trackedFields))
	copy(fields, trackedFields)
	return &Capture{tracked: fields}
}

// JobImage projects a job row into the image the capture compares. A nil job
// yields a nil image (absent side of an insert or delete).
func JobImage(j *model.CatalogingJob) map[string]any {
	if j == nil {
		return nil
	}
	return map[string]any{
		"id":              j.ID,
		"organization_id": j.OrgID,
		"title":           j.Title,
		"status":          string(j.Status),
		"source_type":     string(j.SourceType),
		"item_count":      j.ItemCount,
		"completed_at":    j.CompletedAt,
		"finalized_at":    j.FinalizedAt,
	}
}

// Event derives the outbox event for a row change. ok is false when the
// change is suppressed: an update that touches no tracked field emits
// nothing. Inserts and deletes always emit.
func (c *Capture) Event(op Operation, oldRow, newRow map[string]any) (*model.OutboxEvent, bool) {
	if op == OpUpdate && !c.anyTrackedChanged(oldRow, newRow) {
		return nil, false
	}

	// row image: prefer new, fall back to old (deletes)
	doc := newRow
	if doc == nil {
		doc = oldRow
	}
	if doc == nil {
		return nil, false
	}

	ev := &model.OutboxEvent{
		OrgID:      orgID(doc),
		EventType:  deriveAction(op, oldRow, newRow).String(),
		EntityType: model.EntityTypeCatalogingJob,
		EntityID:   stringField(doc, "id"),
		EventData:  c.payload(op, doc),
		CreatedAt:  time.Now().UTC(),
	}
	return ev, true
}

func (c *Capture) anyTrackedChanged(oldRow, newRow map[string]any) bool {
	for _, f := range c.tracked {
		if !jsonEqual(oldRow[f], newRow[f]) {
			return true
		}
	}
	return false
}

func (c *Capture) payload(op Operation, doc map[string]any) json.RawMessage {
	body := map[string]any{
		"operation":   string(op),
		"source_type": doc["source_type"],
	}
	for _, f := range c.tracked {
		body[f] = doc[f]
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

func deriveAction(op Operation, oldRow, newRow map[string]any) model.EventType {
	switch op {
	case OpInsert:
		return model.EventJobCreated
	case OpDelete:
		return model.EventJobDeleted
	}
	oldStatus := stringField(oldRow, "status")
	newStatus := stringField(newRow, "status")
	switch {
	case newStatus == model.JobStatusCompleted.String() && oldStatus != newStatus:
		return model.EventJobCompleted
	case newStatus == model.JobStatusFailed.String() && oldStatus != newStatus:
		return model.EventJobFailed
	default:
		return model.EventJobUpdated
	}
}

// jsonEqual compares two values by their JSON encoding, mirroring the
// trigger's jsonb IS DISTINCT FROM comparison (nil encodes to null).
func jsonEqual(a, b any) bool {
	ab, aerr := json.Marshal(a)
	bb, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func orgID(doc map[string]any) uuid.UUID {
	switch v := doc["organization_id"].(type) {
	case uuid.UUID:
		return v
	case string:
		if id, err := uuid.Parse(v); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func stringField(doc map[string]any, key string) string {
	if doc == nil {
		return ""
	}
	if s, ok := doc[key].(string); ok {
		return s
	}
	return ""
}
