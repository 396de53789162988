// Package config holds the plugin configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MetersConfig tunes the built-in meters and their polling.
type MetersConfig struct {
	// PollInterval between meter measurements.
	PollInterval time.Duration `yaml:"poll_interval"`
	// RecoveryNormal is the event-loop drain time considered responsive.
	RecoveryNormal time.Duration `yaml:"recovery_normal"`
	// RecoveryTimeout bounds one recovery measurement.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
	// HealthThreshold is the worker ping latency flagged as an anomaly.
	HealthThreshold time.Duration `yaml:"health_threshold"`
}

// MacroConfig tunes macro recording and playback.
type MacroConfig struct {
	// Speed scales playback delays; 1.0 replays at the recorded pace.
	Speed float64 `yaml:"speed"`
	// FilterMouseMoves trims the leading mouse-move burst from recordings.
	FilterMouseMoves *bool `yaml:"filter_mouse_moves"`
}

// Config is the whole plugin configuration.
type Config struct {
	Debug bool `yaml:"debug"`

	// QueueSize bounds the profiling event intake.
	QueueSize int `yaml:"queue_size"`
	// Mismatch selects the reaction to unmatched stop events:
	// "discard" (default) or "abort".
	Mismatch string `yaml:"mismatch"`

	Meters MetersConfig `yaml:"meters"`
	Macro  MacroConfig  `yaml:"macro"`
}

// NewDefault returns a config with every default filled in.
func NewDefault() *Config {
	c := &Config{}
	c.FillDefault()
	return c
}

// FillDefault replaces zero values with defaults.
func (c *Config) FillDefault() {
	if c.QueueSize <= 0 {
		c.QueueSize = 4096
	}
	if c.Mismatch == "" {
		c.Mismatch = "discard"
	}
	if c.Meters.PollInterval == 0 {
		c.Meters.PollInterval = time.Second
	}
	if c.Meters.RecoveryNormal == 0 {
		c.Meters.RecoveryNormal = 20 * time.Millisecond
	}
	if c.Meters.RecoveryTimeout == 0 {
		c.Meters.RecoveryTimeout = 10 * time.Second
	}
	if c.Meters.HealthThreshold == 0 {
		c.Meters.HealthThreshold = 100 * time.Millisecond
	}
	if c.Macro.Speed == 0 {
		c.Macro.Speed = 1.0
	}
	if c.Macro.FilterMouseMoves == nil {
		enabled := true
		c.Macro.FilterMouseMoves = &enabled
	}
}

// Load reads a yaml config file and fills defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return NewDefault(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if c.Mismatch != "" && c.Mismatch != "discard" && c.Mismatch != "abort" {
		return nil, fmt.Errorf("config %s: invalid mismatch value %q", path, c.Mismatch)
	}
	c.FillDefault()
	return c, nil
}
