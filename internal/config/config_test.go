package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "trigger", cfg.Outbox.Capture)
	assert.Equal(t, []string{"status", "completed_at", "finalized_at"}, cfg.Outbox.TrackedFields)
	assert.Equal(t, "push-relay", cfg.Relay.ConsumerID)
	assert.Equal(t, 2*time.Second, cfg.Notify.DebounceWindow)
	assert.Equal(t, 168*time.Hour, cfg.Maintenance.Retention)
	assert.Equal(t, 5, cfg.Maintenance.DLQMaxAttempts)
	assert.Equal(t, "catalog.events", cfg.Kafka.Topic)
}

func TestLoadMergesUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relay:\n  batch_size: 7\nnotify:\n  debounce_window: 250ms\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Relay.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Notify.DebounceWindow)
	// untouched keys keep embedded defaults
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}
