package realtime

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning defaults. These values are empirical product tuning carried over
// from production restaurants, not structural requirements; override them
// through Config or a config file.
const (
	DefaultDebounceWindow     = 500 * time.Millisecond
	DefaultBackoffInitial     = 1 * time.Second
	DefaultBackoffMax         = 20 * time.Second
	DefaultBackoffMultiplier  = 2.0
	DefaultWatchdogTimeout    = 6 * time.Second
	DefaultPollInterval       = 4 * time.Second
	DefaultHealthCheckTimeout = 5 * time.Second
)

// Config holds the client's tuning knobs. The zero value of any field
// selects its default.
type Config struct {
	// DebounceWindow is the quiet window before a notification burst
	// triggers one refetch. Resources may override it individually.
	DebounceWindow time.Duration

	// BackoffInitial is the first reconnect delay.
	BackoffInitial time.Duration

	// BackoffMax caps the reconnect delay.
	BackoffMax time.Duration

	// BackoffMultiplier is the delay growth factor.
	BackoffMultiplier float64

	// BackoffJitter is the jitter fraction added to reconnect delays.
	BackoffJitter float64

	// WatchdogTimeout is how long a connection attempt may take to reach
	// active before fallback polling starts.
	WatchdogTimeout time.Duration

	// PollInterval is the fallback poll interval for critical resources.
	PollInterval time.Duration

	// HealthCheckTimeout bounds the startup health check.
	HealthCheckTimeout time.Duration
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		DebounceWindow:     DefaultDebounceWindow,
		BackoffInitial:     DefaultBackoffInitial,
		BackoffMax:         DefaultBackoffMax,
		BackoffMultiplier:  DefaultBackoffMultiplier,
		BackoffJitter:      0,
		WatchdogTimeout:    DefaultWatchdogTimeout,
		PollInterval:       DefaultPollInterval,
		HealthCheckTimeout: DefaultHealthCheckTimeout,
	}
}

// withDefaults fills zero fields with their defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = d.DebounceWindow
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = d.BackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	if c.BackoffJitter < 0 {
		c.BackoffJitter = 0
	}
	if c.WatchdogTimeout <= 0 {
		c.WatchdogTimeout = d.WatchdogTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.HealthCheckTimeout <= 0 {
		c.HealthCheckTimeout = d.HealthCheckTimeout
	}
	return c
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.BackoffMax < c.BackoffInitial {
		return errors.New("backoff max below initial")
	}
	if c.BackoffJitter > 1 {
		return errors.New("backoff jitter above 1.0")
	}
	if c.WatchdogTimeout < c.BackoffInitial {
		return errors.New("watchdog timeout below initial backoff")
	}
	return nil
}

// fileConfig is the on-disk YAML schema. Durations are milliseconds, the
// unit the tuning was done in. Zero or absent fields select defaults.
type fileConfig struct {
	DebounceWindowMS     int     `yaml:"debounce_window_ms"`
	BackoffInitialMS     int     `yaml:"backoff_initial_ms"`
	BackoffMaxMS         int     `yaml:"backoff_max_ms"`
	BackoffMultiplier    float64 `yaml:"backoff_multiplier"`
	BackoffJitter        float64 `yaml:"backoff_jitter"`
	WatchdogTimeoutMS    int     `yaml:"watchdog_timeout_ms"`
	PollIntervalMS       int     `yaml:"poll_interval_ms"`
	HealthCheckTimeoutMS int     `yaml:"health_check_timeout_ms"`
}

// LoadConfig reads a YAML config file, fills defaults, and validates.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config bytes, fills defaults, and validates.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Config{
		DebounceWindow:     time.Duration(fc.DebounceWindowMS) * time.Millisecond,
		BackoffInitial:     time.Duration(fc.BackoffInitialMS) * time.Millisecond,
		BackoffMax:         time.Duration(fc.BackoffMaxMS) * time.Millisecond,
		BackoffMultiplier:  fc.BackoffMultiplier,
		BackoffJitter:      fc.BackoffJitter,
		WatchdogTimeout:    time.Duration(fc.WatchdogTimeoutMS) * time.Millisecond,
		PollInterval:       time.Duration(fc.PollIntervalMS) * time.Millisecond,
		HealthCheckTimeout: time.Duration(fc.HealthCheckTimeoutMS) * time.Millisecond,
	}.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
