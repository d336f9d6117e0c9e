package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		ok       bool
	}{
		{JobStatusQueued, JobStatusProcessing, true},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusQueued, JobStatusCompleted, false},
		{JobStatusQueued, JobStatusFailed, false},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusQueued, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestParseJobSource(t *testing.T) {
	src, ok := ParseJobSource("")
	require.True(t, ok)
	assert.Equal(t, SourceManual, src)

	src, ok = ParseJobSource(" CSV_Import ")
	require.True(t, ok)
	assert.Equal(t, SourceCSVImport, src)

	src, ok = ParseJobSource("isbn_lookup")
	require.True(t, ok)
	assert.Equal(t, SourceISBNLookup, src)

	_, ok = ParseJobSource("fax")
	assert.False(t, ok)
}
