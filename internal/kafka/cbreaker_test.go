package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewMicroBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, b.TryAcquire())
		b.OnFailure()
	}

	assert.False(t, b.Ready())
	assert.False(t, b.TryAcquire())
}

func TestBreakerSuccessResetsFailStreak(t *testing.T) {
	b := NewMicroBreaker(3, time.Minute)

	b.OnFailure()
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	b.OnFailure()

	assert.True(t, b.Ready())
}

func TestBreakerAllowsSingleProbeAfterOpenWindow(t *testing.T) {
	b := NewMicroBreaker(1, 20*time.Millisecond)

	require.True(t, b.TryAcquire())
	b.OnFailure()
	require.False(t, b.TryAcquire())

	time.Sleep(30 * time.Millisecond)

	assert.True(t, b.TryAcquire(), "first probe goes through")
	assert.False(t, b.TryAcquire(), "second caller blocked while probe in flight")

	b.OnSuccess()
	assert.True(t, b.TryAcquire(), "closed again after probe success")
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	b := NewMicroBreaker(1, 20*time.Millisecond)

	b.OnFailure()
	time.Sleep(30 * time.Millisecond)

	require.True(t, b.TryAcquire())
	b.OnFailure()

	assert.False(t, b.TryAcquire(), "reopened immediately after failed probe")
}
