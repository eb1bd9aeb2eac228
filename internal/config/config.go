package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the service tunables persisted to disk. Every field has a
// working default; the on-disk file only needs to name the values it changes.
type Config struct {
	// SessionName is the well-known ETW session name. A stale session with
	// this name left by a crashed run is stopped before a new one starts.
	SessionName string `json:"session_name"`

	// PipeName is the local endpoint clients connect to for snapshots.
	PipeName string `json:"pipe_name"`

	// EnableDWMProvider additionally enables the desktop-compositor present
	// provider. Off by default: compositor presents are noise for game FPS.
	EnableDWMProvider bool `json:"enable_dwm_provider"`

	// RetentionSeconds is how long per-process present timestamps are kept.
	RetentionSeconds int `json:"retention_seconds"`

	// MaxLogEntries caps stored timestamps per process regardless of age.
	MaxLogEntries int `json:"max_log_entries"`

	// MinFPS and MaxFPS bound the plausible game range; processes measured
	// outside the band are never selected as the active game.
	MinFPS float64 `json:"min_fps"`
	MaxFPS float64 `json:"max_fps"`

	// AggregateIntervalMS is the minimum spacing between FPS recomputations.
	AggregateIntervalMS int `json:"aggregate_interval_ms"`

	// PollIntervalMS is the lifecycle loop's publish cadence.
	PollIntervalMS int `json:"poll_interval_ms"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		SessionName:         "FpsMonTrace",
		PipeName:            `\\.\pipe\fpsmon-v1`,
		EnableDWMProvider:   false,
		RetentionSeconds:    5,
		MaxLogEntries:       500,
		MinFPS:              10,
		MaxFPS:              240,
		AggregateIntervalMS: 500,
		PollIntervalMS:      100,
		LogLevel:            "info",
		LogFile:             "",
	}
}

// DefaultPath returns the absolute path to the service's JSON config file:
//
//	%ProgramData%\fpsmon\config.json
//
// The directory is not guaranteed to exist; callers that write must create it.
func DefaultPath() string {
	base := os.Getenv("ProgramData")
	if base == "" {
		base = `C:\ProgramData`
	}
	return filepath.Join(base, "fpsmon", "config.json")
}

// Load reads persisted settings from path and overlays them on the defaults.
// Errors are silently ignored — missing or malformed config files are treated
// as "use defaults".
func Load(path string) Config {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if json.Unmarshal(data, &cfg) != nil {
		return Default()
	}
	return cfg.sanitized()
}

// sanitized clamps nonsense values back to their defaults so a bad file can
// never stall the aggregation loops.
func (c Config) sanitized() Config {
	def := Default()
	if c.SessionName == "" {
		c.SessionName = def.SessionName
	}
	if c.PipeName == "" {
		c.PipeName = def.PipeName
	}
	if c.RetentionSeconds <= 0 {
		c.RetentionSeconds = def.RetentionSeconds
	}
	if c.MaxLogEntries <= 0 {
		c.MaxLogEntries = def.MaxLogEntries
	}
	if c.MinFPS <= 0 || c.MaxFPS <= c.MinFPS {
		c.MinFPS = def.MinFPS
		c.MaxFPS = def.MaxFPS
	}
	if c.AggregateIntervalMS <= 0 {
		c.AggregateIntervalMS = def.AggregateIntervalMS
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = def.PollIntervalMS
	}
	return c
}

// Save writes the configuration to path as JSON, creating the directory if
// needed. Write errors are silently ignored — a failed save does not affect
// the running service.
func Save(path string, cfg Config) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}
