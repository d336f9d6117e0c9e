package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

var testOrg = uuid.MustParse("6f1b2a34-9c1d-4e2f-8a3b-5c6d7e8f9a0b")

func testJob(status model.JobStatus) *model.CatalogingJob {
	return &model.CatalogingJob{
		ID:         "01J9ZHH3V5R1T8B2Q4W6Y8D0AB",
		OrgID:      testOrg,
		Title:      "Spring inventory import",
		SourceType: model.SourceCSVImport,
		Status:     status,
		ItemCount:  120,
	}
}

func decodeData(t *testing.T, ev *model.OutboxEvent) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(ev.EventData, &m))
	return m
}

func TestCaptureSuppressesUntrackedUpdate(t *testing.T) {
	c := NewCapture(nil)

	oldJob := testJob(model.JobStatusProcessing)
	newJob := testJob(model.JobStatusProcessing)
	newJob.Title = "Spring inventory import (renamed)"
	newJob.ItemCount = 121

	_, ok := c.Event(OpUpdate, JobImage(oldJob), JobImage(newJob))
	assert.False(t, ok)
}

func TestCaptureEmitsOnTrackedUpdate(t *testing.T) {
	c := NewCapture(nil)

	oldJob := testJob(model.JobStatusQueued)
	newJob := testJob(model.JobStatusProcessing)

	ev, ok := c.Event(OpUpdate, JobImage(oldJob), JobImage(newJob))
	require.True(t, ok)
	assert.Equal(t, model.EventJobUpdated.String(), ev.EventType)
	assert.Equal(t, model.EntityTypeCatalogingJob, ev.EntityType)
	assert.Equal(t, oldJob.ID, ev.EntityID)
	assert.Equal(t, testOrg, ev.OrgID)

	data := decodeData(t, ev)
	assert.Equal(t, "processing", data["status"])
	assert.Equal(t, "update", data["operation"])
	assert.Equal(t, "csv_import", data["source_type"])
}

func TestCaptureDerivesCompletionAndFailure(t *testing.T) {
	c := NewCapture(nil)

	oldJob := testJob(model.JobStatusProcessing)

	done := testJob(model.JobStatusCompleted)
	now := time.Now().UTC()
	done.CompletedAt = &now
	ev, ok := c.Event(OpUpdate, JobImage(oldJob), JobImage(done))
	require.True(t, ok)
	assert.Equal(t, model.EventJobCompleted.String(), ev.EventType)

	failed := testJob(model.JobStatusFailed)
	ev, ok = c.Event(OpUpdate, JobImage(oldJob), JobImage(failed))
	require.True(t, ok)
	assert.Equal(t, model.EventJobFailed.String(), ev.EventType)
}

func TestCaptureInsertAlwaysEmits(t *testing.T) {
	c := NewCapture(nil)

	job := testJob(model.JobStatusQueued)
	ev, ok := c.Event(OpInsert, nil, JobImage(job))
	require.True(t, ok)
	assert.Equal(t, model.EventJobCreated.String(), ev.EventType)
	assert.Equal(t, job.ID, ev.EntityID)

	data := decodeData(t, ev)
	assert.Equal(t, "insert", data["operation"])
	assert.Equal(t, "queued", data["status"])
}

func TestCaptureDeleteUsesOldImage(t *testing.T) {
	c := NewCapture(nil)

	job := testJob(model.JobStatusCompleted)
	ev, ok := c.Event(OpDelete, JobImage(job), nil)
	require.True(t, ok)
	assert.Equal(t, model.EventJobDeleted.String(), ev.EventType)
	assert.Equal(t, job.ID, ev.EntityID)
	assert.Equal(t, testOrg, ev.OrgID)

	data := decodeData(t, ev)
	assert.Equal(t, "delete", data["operation"])
}

func TestCaptureTimestampChangeEmits(t *testing.T) {
	c := NewCapture(nil)

	oldJob := testJob(model.JobStatusCompleted)
	newJob := testJob(model.JobStatusCompleted)
	now := time.Now().UTC()
	newJob.FinalizedAt = &now

	ev, ok := c.Event(OpUpdate, JobImage(oldJob), JobImage(newJob))
	require.True(t, ok)

	data := decodeData(t, ev)
	assert.NotNil(t, data["finalized_at"])
}

func TestCaptureConfigurableAllowlist(t *testing.T) {
	c := NewCapture([]string{"title"})

	oldJob := testJob(model.JobStatusQueued)

	renamed := testJob(model.JobStatusQueued)
	renamed.Title = "Backlist refresh"
	_, ok := c.Event(OpUpdate, JobImage(oldJob), JobImage(renamed))
	assert.True(t, ok)

	// status is no longer tracked, so a pure status change is suppressed
	moved := testJob(model.JobStatusProcessing)
	_, ok = c.Event(OpUpdate, JobImage(oldJob), JobImage(moved))
	assert.False(t, ok)
}
