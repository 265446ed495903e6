// Package config provides configuration management for stepcapture.
package config

import (
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

// Defaults for service-level settings.
const (
	DefaultWorkerPort = 37455
	DefaultMaxConns   = 4
)

// Config holds all tunable settings. Matching weights and thresholds are
// deliberately configuration, not constants: the scoring function is a tuned
// reconstruction and deployments are expected to adjust it.
type Config struct {
	WorkerPort int `json:"worker_port"`
	MaxConns   int `json:"max_conns"`

	// Matcher tunables. Weights must sum to 1 with text dominant.
	TextWeight      float64 `json:"text_weight"`
	SpatialWeight   float64 `json:"spatial_weight"`
	VisualWeight    float64 `json:"visual_weight"`
	MatchThreshold  float64 `json:"match_threshold"`
	AmbiguityMargin float64 `json:"ambiguity_margin"`

	// Minimum vision-detection confidence for an element to be eligible for
	// auto-matching. Elements below the gate still flow through as questions.
	MinMatchConfidence float64 `json:"min_match_confidence"`

	// Vertical tolerance in pixels for bucketing elements into the same
	// reading-order row.
	RowTolerance float64 `json:"row_tolerance"`

	// Maximum elements scored concurrently per screenshot.
	MatchConcurrency int `json:"match_concurrency"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		WorkerPort:         DefaultWorkerPort,
		MaxConns:           DefaultMaxConns,
		TextWeight:         0.5,
		SpatialWeight:      0.3,
		VisualWeight:       0.2,
		MatchThreshold:     0.75,
		AmbiguityMargin:    0.10,
		MinMatchConfidence: 0.5,
		RowTolerance:       16,
		MatchConcurrency:   4,
	}
}

var (
	current *Config
	mu      sync.RWMutex
)

// Get returns the current configuration, loading it on first use.
func Get() *Config {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return current
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		current = cfg
	}
	return current
}

// DataDir returns the stepcapture data directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".stepcapture")
}

// DBPath returns the SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "stepcapture.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// EnsureSettings writes a default settings file if one does not exist.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Save(Default())
}

// EnsureAll creates the data directory and default settings.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads the settings file. Missing or unknown fields fall back to
// defaults so old settings files keep working across upgrades.
func Load() (*Config, error) {
	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes the settings file.
func Save(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsPath(), data, 0o644)
}

// Reset clears the cached configuration. Intended for tests and for the
// settings watcher restart path.
func Reset() {
	mu.Lock()
	current = nil
	mu.Unlock()
}

// normalize repairs settings that would break matching invariants.
func (c *Config) normalize() {
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MatchConcurrency <= 0 {
		c.MatchConcurrency = 4
	}
	if c.RowTolerance <= 0 {
		c.RowTolerance = 16
	}

	// Weights must sum to 1; rescale rather than reject.
	sum := c.TextWeight + c.SpatialWeight + c.VisualWeight
	if sum <= 0 {
		d := Default()
		c.TextWeight, c.SpatialWeight, c.VisualWeight = d.TextWeight, d.SpatialWeight, d.VisualWeight
	} else if sum != 1.0 {
		c.TextWeight /= sum
		c.SpatialWeight /= sum
		c.VisualWeight /= sum
	}
}
