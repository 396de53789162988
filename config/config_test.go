package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joonalai/profiler-qgis-plugin/config"
)

func TestDefaults(t *testing.T) {
	c := config.NewDefault()
	assert.False(t, c.Debug)
	assert.Equal(t, 4096, c.QueueSize)
	assert.Equal(t, "discard", c.Mismatch)
	assert.Equal(t, time.Second, c.Meters.PollInterval)
	assert.Equal(t, 20*time.Millisecond, c.Meters.RecoveryNormal)
	assert.Equal(t, 10*time.Second, c.Meters.RecoveryTimeout)
	assert.Equal(t, 100*time.Millisecond, c.Meters.HealthThreshold)
	assert.Equal(t, 1.0, c.Macro.Speed)
	require.NotNil(t, c.Macro.FilterMouseMoves)
	assert.True(t, *c.Macro.FilterMouseMoves)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.NewDefault(), c)
}

func TestLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
debug: true
mismatch: abort
meters:
  poll_interval: 250ms
macro:
  speed: 0.5
  filter_mouse_moves: false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, c.Debug)
	assert.Equal(t, "abort", c.Mismatch)
	assert.Equal(t, 250*time.Millisecond, c.Meters.PollInterval)
	assert.Equal(t, 0.5, c.Macro.Speed)
	require.NotNil(t, c.Macro.FilterMouseMoves)
	assert.False(t, *c.Macro.FilterMouseMoves)
	// Unset fields get the defaults.
	assert.Equal(t, 4096, c.QueueSize)
	assert.Equal(t, 10*time.Second, c.Meters.RecoveryTimeout)
}

func TestLoadRejectsInvalidMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mismatch: explode\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mismatch")
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue_size: [not a number\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}
