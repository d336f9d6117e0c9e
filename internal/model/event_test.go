package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeValid(t *testing.T) {
	for _, et := range []EventType{
		EventJobCreated, EventJobUpdated, EventJobCompleted, EventJobFailed, EventJobDeleted,
	} {
		assert.True(t, et.Valid(), et)
	}
	assert.False(t, EventType("cataloging_job_exploded").Valid())
	assert.False(t, EventType("").Valid())
}

func TestDecodePayloadJob(t *testing.T) {
	ev := &OutboxEvent{
		EntityType: EntityTypeCatalogingJob,
		EventData:  json.RawMessage(`{"status":"completed","source_type":"csv_import","operation":"update"}`),
	}

	p, ok := ev.DecodePayload().(JobPayload)
	require.True(t, ok)
	assert.Equal(t, "completed", p.Status)
	assert.Equal(t, "csv_import", p.SourceType)
	assert.Equal(t, "update", p.Operation)
}

func TestDecodePayloadUnknownEntity(t *testing.T) {
	ev := &OutboxEvent{
		EntityType: "shipment",
		EventData:  json.RawMessage(`{"carrier":"ups"}`),
	}

	p, ok := ev.DecodePayload().(UnknownPayload)
	require.True(t, ok)
	assert.JSONEq(t, `{"carrier":"ups"}`, string(p.Raw))
}

func TestDecodePayloadMalformed(t *testing.T) {
	ev := &OutboxEvent{
		EntityType: EntityTypeCatalogingJob,
		EventData:  json.RawMessage(`{"status":`),
	}

	_, ok := ev.DecodePayload().(UnknownPayload)
	assert.True(t, ok)
}
