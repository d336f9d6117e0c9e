package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildToastsEmptyBatch(t *testing.T) {
	assert.Empty(t, BuildToasts(NewBatch(time.Now())))
}

func TestBuildToastsIndividual(t *testing.T) {
	b := NewBatch(time.Now())
	b.Add(Event{EntityID: "job-1", Outcome: OutcomeSuccess})

	toasts := BuildToasts(b)
	require.Len(t, toasts, 1)
	assert.Equal(t, "Job Completed", toasts[0].Title)
	require.NotNil(t, toasts[0].Action)
	assert.Equal(t, "View Job", toasts[0].Action.Label)
	assert.Equal(t, "/cataloging/jobs/job-1", toasts[0].Action.Href)
	assert.Equal(t, SuccessToastDuration, toasts[0].Duration)
}

func TestBuildToastsAggregated(t *testing.T) {
	b := NewBatch(time.Now())
	for i := 0; i < 3; i++ {
		b.Add(Event{EntityID: "job", Outcome: OutcomeSuccess})
	}
	b.Add(Event{EntityID: "job-x", Outcome: OutcomeFailure})
	b.Add(Event{EntityID: "job-y", Outcome: OutcomeFailure})

	toasts := BuildToasts(b)
	require.Len(t, toasts, 2)

	assert.Equal(t, "Multiple Jobs Updated", toasts[0].Title)
	assert.Equal(t, "3 cataloging jobs have been processed successfully", toasts[0].Description)
	require.NotNil(t, toasts[0].Action)
	assert.Equal(t, "/cataloging/jobs", toasts[0].Action.Href)

	assert.Equal(t, "Multiple Jobs Failed", toasts[1].Title)
	assert.Equal(t, "2 cataloging jobs failed to process", toasts[1].Description)
	require.NotNil(t, toasts[1].Action)
	assert.Equal(t, "Review Failures", toasts[1].Action.Label)
	assert.Equal(t, "/cataloging/jobs?status=failed", toasts[1].Action.Href)
}

func TestBuildToastsGenericBucket(t *testing.T) {
	b := NewBatch(time.Now())
	b.Add(Event{Outcome: OutcomeOther})
	b.Add(Event{Outcome: OutcomeOther})

	toasts := BuildToasts(b)
	require.Len(t, toasts, 1)
	assert.Equal(t, "Multiple Jobs Updated", toasts[0].Title)
	assert.Equal(t, "2 cataloging jobs were updated", toasts[0].Description)
}

func TestBuildToastsIndividualWithoutEntityIDHasNoAction(t *testing.T) {
	b := NewBatch(time.Now())
	b.Add(Event{Outcome: OutcomeFailure})

	toasts := BuildToasts(b)
	require.Len(t, toasts, 1)
	assert.Nil(t, toasts[0].Action)
}

func TestFailureToastsOutliveSuccessToasts(t *testing.T) {
	assert.Greater(t, FailureToastDuration, SuccessToastDuration)
}
