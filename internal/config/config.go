// Package config loads poller configuration.
//
// Resolution order: defaults, then the YAML file (if any), then
// environment variable overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full poller configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Poll    PollConfig    `yaml:"poll"`
	Paths   PathsConfig   `yaml:"paths"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DeviceConfig addresses the attendance terminal.
type DeviceConfig struct {
	// Addr is the terminal's TCP address, host:port.
	Addr string `yaml:"addr"`

	// TimeoutSeconds bounds each protocol exchange.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Timezone interprets the terminal's local timestamps. Empty means
	// the host's local zone.
	Timezone string `yaml:"timezone"`
}

// PollConfig controls the tick loop.
type PollConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`

	// RolloverHour is the local hour at which a new attendance day
	// starts. 0 means midnight.
	RolloverHour int `yaml:"rollover_hour"`
}

// PathsConfig locates the poller's files.
type PathsConfig struct {
	// Roster is the people CSV (id,name).
	Roster string `yaml:"roster"`

	// OutputDir receives the per-day attendance CSVs.
	OutputDir string `yaml:"output_dir"`

	// State is the SQLite database file.
	State string `yaml:"state"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Addr:           "192.168.1.201:4370",
			TimeoutSeconds: 5,
		},
		Poll: PollConfig{
			IntervalSeconds: 10,
			RolloverHour:    0,
		},
		Paths: PathsConfig{
			Roster:    "users.csv",
			OutputDir: ".",
			State:     "attendance_state.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9465",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. A missing file is not an error: defaults plus environment
// carry a bare deployment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies ROLLCALL_* environment variables on top of
// whatever the file set.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ROLLCALL_DEVICE_ADDR"); v != "" {
		c.Device.Addr = v
	}
	if v := os.Getenv("ROLLCALL_DEVICE_TIMEZONE"); v != "" {
		c.Device.Timezone = v
	}
	if v, ok := envInt("ROLLCALL_DEVICE_TIMEOUT_SECONDS"); ok {
		c.Device.TimeoutSeconds = v
	}
	if v, ok := envInt("ROLLCALL_POLL_INTERVAL_SECONDS"); ok {
		c.Poll.IntervalSeconds = v
	}
	if v, ok := envInt("ROLLCALL_ROLLOVER_HOUR"); ok {
		c.Poll.RolloverHour = v
	}
	if v := os.Getenv("ROLLCALL_ROSTER"); v != "" {
		c.Paths.Roster = v
	}
	if v := os.Getenv("ROLLCALL_OUTPUT_DIR"); v != "" {
		c.Paths.OutputDir = v
	}
	if v := os.Getenv("ROLLCALL_STATE"); v != "" {
		c.Paths.State = v
	}
	if v := os.Getenv("ROLLCALL_METRICS_LISTEN"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Listen = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate returns an error if the configuration is unusable.
func (c *Config) Validate() error {
	if c.Device.Addr == "" {
		return fmt.Errorf("device.addr is required")
	}
	if c.Device.TimeoutSeconds <= 0 {
		return fmt.Errorf("device.timeout_seconds must be positive, got %d", c.Device.TimeoutSeconds)
	}
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be positive, got %d", c.Poll.IntervalSeconds)
	}
	if c.Poll.RolloverHour < 0 || c.Poll.RolloverHour > 23 {
		return fmt.Errorf("poll.rollover_hour must be in [0,23], got %d", c.Poll.RolloverHour)
	}
	if c.Paths.Roster == "" {
		return fmt.Errorf("paths.roster is required")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("paths.output_dir is required")
	}
	if c.Paths.State == "" {
		return fmt.Errorf("paths.state is required")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics are enabled")
	}
	if c.Device.Timezone != "" {
		if _, err := time.LoadLocation(c.Device.Timezone); err != nil {
			return fmt.Errorf("device.timezone: %w", err)
		}
	}
	return nil
}

// PollInterval returns the tick interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// DeviceTimeout returns the protocol exchange deadline as a duration.
func (c *Config) DeviceTimeout() time.Duration {
	return time.Duration(c.Device.TimeoutSeconds) * time.Second
}

// DeviceLocation resolves the configured timezone. Empty means local.
func (c *Config) DeviceLocation() (*time.Location, error) {
	if c.Device.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Device.Timezone)
}
