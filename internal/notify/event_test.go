package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

func TestDecodeEventClassification(t *testing.T) {
	cases := []struct {
		name      string
		eventType model.EventType
		want      Outcome
	}{
		{"completed", model.EventJobCompleted, OutcomeSuccess},
		{"failed", model.EventJobFailed, OutcomeFailure},
		{"created", model.EventJobCreated, OutcomeOther},
		{"updated", model.EventJobUpdated, OutcomeOther},
		{"deleted", model.EventJobDeleted, OutcomeOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := decodeEvent(eventJSON(t, 7, tc.eventType, "job-7"))
			assert.Equal(t, tc.want, ev.Outcome)
			assert.Equal(t, int64(7), ev.ID)
			assert.Equal(t, "job-7", ev.EntityID)

			payload, ok := ev.Payload.(model.JobPayload)
			require.True(t, ok)
			assert.Equal(t, "csv_import", payload.SourceType)
		})
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	ev := decodeEvent([]byte(`{"id": "not-a-number"}`))
	assert.Equal(t, OutcomeOther, ev.Outcome)
	assert.Zero(t, ev.ID)
}

func TestDecodeEventMissingType(t *testing.T) {
	ev := decodeEvent([]byte(`{"id": 12, "entity_type": "cataloging_job", "entity_id": "j"}`))
	assert.Equal(t, OutcomeOther, ev.Outcome)
	assert.Equal(t, int64(12), ev.ID)
}
