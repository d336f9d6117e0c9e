package notify

import (
	"encoding/json"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

// Outcome buckets an event for batching.
type Outcome int

const (
	OutcomeOther Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

// Event is one push payload as seen by the client hook.
type Event struct {
	ID         int64
	EventType  string
	EntityType string
	EntityID   string
	Payload    model.EventPayload
	Outcome    Outcome
}

// decodeEvent never fails: unparseable payloads and events missing an id or
// type classify as OutcomeOther, so a misbehaving producer cannot crash the
// hook. Malformed events still count toward the batch.
func decodeEvent(raw []byte) Event {
	var wire model.OutboxEvent
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Event{Outcome: OutcomeOther}
	}
	return Event{
		ID:         wire.ID,
		EventType:  wire.EventType,
		EntityType: wire.EntityType,
		EntityID:   wire.EntityID,
		Payload:    wire.DecodePayload(),
		Outcome:    classify(wire.ID, wire.EventType),
	}
}

func classify(id int64, eventType string) Outcome {
	if id == 0 || eventType == "" {
		return OutcomeOther
	}
	switch model.EventType(eventType) {
	case model.EventJobCompleted:
		return OutcomeSuccess
	case model.EventJobFailed:
		return OutcomeFailure
	default:
		return OutcomeOther
	}
}
