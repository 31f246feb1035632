// Package config loads chime settings from an optional YAML file, overlaid
// by CHIME_* environment variables; flag overrides are applied by the CLI.
// Validation happens at load time so watchers never see bad input.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StrategyEvents = "events"
	StrategyPoll   = "poll"
)

type Config struct {
	// Paths are the watch roots. At least one is required.
	Paths []string `yaml:"paths"`
	// Extensions is the allow-list; empty means every file counts.
	Extensions []string `yaml:"extensions"`
	// Strategy selects the watch mechanism: "events" (native notifications,
	// with polling fallback at startup) or "poll".
	Strategy string `yaml:"strategy"`

	PollIntervalSeconds  int `yaml:"poll_interval_seconds"`
	QuietPeriodMillis    int `yaml:"quiet_period_ms"`
	MaxWindowMillis      int `yaml:"max_window_ms"`
	AlertIntervalSeconds int `yaml:"alert_interval_seconds"`

	// Volume is one of small, medium, large.
	Volume string `yaml:"volume"`

	// ProcessName enables the network-activity monitor when non-empty.
	ProcessName          string `yaml:"process_name"`
	ProbeIntervalSeconds int    `yaml:"probe_interval_seconds"`

	Debug bool `yaml:"debug"`
}

func Default() Config {
	return Config{
		Strategy:             StrategyEvents,
		PollIntervalSeconds:  2,
		QuietPeriodMillis:    300,
		MaxWindowMillis:      2000,
		AlertIntervalSeconds: 10,
		Volume:               "medium",
		ProbeIntervalSeconds: 3,
	}
}

// LoadFile reads the YAML file at path (skipped when path is empty or the
// file does not exist) and applies environment overrides, without
// validating. Callers that overlay further settings, such as CLI flags,
// validate the merged result themselves. An unreadable or unparseable file
// is always an error, never silently replaced by defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(payload, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Load is LoadFile plus validation, for callers with no further overrides.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if raw := os.Getenv("CHIME_PATHS"); raw != "" {
		cfg.Paths = SplitList(raw)
	}
	if raw := os.Getenv("CHIME_EXTENSIONS"); raw != "" {
		cfg.Extensions = SplitList(raw)
	}
	if raw := os.Getenv("CHIME_STRATEGY"); raw != "" {
		cfg.Strategy = raw
	}
	if raw := os.Getenv("CHIME_VOLUME"); raw != "" {
		cfg.Volume = raw
	}
	if raw := os.Getenv("CHIME_PROCESS_NAME"); raw != "" {
		cfg.ProcessName = raw
	}
	if raw := os.Getenv("CHIME_POLL_INTERVAL_SECONDS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			cfg.PollIntervalSeconds = parsed
		}
	}
	if raw := os.Getenv("CHIME_QUIET_PERIOD_MS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			cfg.QuietPeriodMillis = parsed
		}
	}
	if raw := os.Getenv("CHIME_DEBUG"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.Debug = parsed
		}
	}
}

func (cfg Config) Validate() error {
	if len(cfg.Paths) == 0 {
		return fmt.Errorf("at least one watch path is required")
	}
	for _, path := range cfg.Paths {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("watch path must not be blank")
		}
	}
	switch cfg.Strategy {
	case StrategyEvents, StrategyPoll:
	default:
		return fmt.Errorf("unknown strategy %q (want %s or %s)", cfg.Strategy, StrategyEvents, StrategyPoll)
	}
	if cfg.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll interval must be positive, got %d", cfg.PollIntervalSeconds)
	}
	if cfg.QuietPeriodMillis <= 0 {
		return fmt.Errorf("quiet period must be positive, got %d", cfg.QuietPeriodMillis)
	}
	if cfg.MaxWindowMillis < cfg.QuietPeriodMillis {
		return fmt.Errorf("max window (%dms) must not be below the quiet period (%dms)", cfg.MaxWindowMillis, cfg.QuietPeriodMillis)
	}
	if cfg.AlertIntervalSeconds < 0 {
		return fmt.Errorf("alert interval must not be negative, got %d", cfg.AlertIntervalSeconds)
	}
	if cfg.ProbeIntervalSeconds <= 0 {
		return fmt.Errorf("probe interval must be positive, got %d", cfg.ProbeIntervalSeconds)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Volume)) {
	case "", "small", "medium", "large":
	default:
		return fmt.Errorf("unknown volume %q (want small, medium or large)", cfg.Volume)
	}
	return nil
}

func (cfg Config) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalSeconds) * time.Second
}

func (cfg Config) QuietPeriod() time.Duration {
	return time.Duration(cfg.QuietPeriodMillis) * time.Millisecond
}

func (cfg Config) MaxWindow() time.Duration {
	return time.Duration(cfg.MaxWindowMillis) * time.Millisecond
}

func (cfg Config) AlertInterval() time.Duration {
	return time.Duration(cfg.AlertIntervalSeconds) * time.Second
}

func (cfg Config) ProbeInterval() time.Duration {
	return time.Duration(cfg.ProbeIntervalSeconds) * time.Second
}

// SplitList breaks a comma-separated value into trimmed non-empty entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
