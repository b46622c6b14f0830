// Package config handles loading, defaulting, and validation of the clipwatch
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Studio     StudioConfig     `toml:"studio"     json:"studio"`
	Motion     MotionConfig     `toml:"motion"     json:"motion"`
	Background BackgroundConfig `toml:"background" json:"background"`
	Clips      ClipsConfig      `toml:"clips"      json:"clips"`
	Library    LibraryConfig    `toml:"library"    json:"library"`
	Logging    LoggingConfig    `toml:"logging"    json:"logging"`
	Server     ServerConfig     `toml:"server"     json:"server"`
	Demo       DemoConfig       `toml:"demo"       json:"demo"`
}

// StudioConfig points at the streaming studio's websocket control channel,
// which supplies frames and drives the actual recording output.
type StudioConfig struct {
	Host     string `toml:"host"     json:"host"`
	Port     int    `toml:"port"     json:"port"`
	Password string `toml:"password" json:"-"`
	Source   string `toml:"source"   json:"source"`
}

// MotionConfig tunes the motion estimator and the start/stop hysteresis.
// The defaults match the values the detector was tuned with; they are
// exposed here so deployments can adjust per scene.
type MotionConfig struct {
	HighThreshold    float64 `toml:"high_threshold"    json:"high_threshold"`
	LowThreshold     float64 `toml:"low_threshold"     json:"low_threshold"`
	SettleSeconds    float64 `toml:"settle_seconds"    json:"settle_seconds"`
	SampleRate       int     `toml:"sample_rate"       json:"sample_rate"`
	DiffCutoff       int     `toml:"diff_cutoff"       json:"diff_cutoff"`
	BlurRadius       int     `toml:"blur_radius"       json:"blur_radius"`
	DiffWeight       float64 `toml:"diff_weight"       json:"diff_weight"`
	BackgroundWeight float64 `toml:"background_weight" json:"background_weight"`
}

// BackgroundConfig tunes the adaptive per-pixel background model.
type BackgroundConfig struct {
	History      int     `toml:"history"       json:"history"`
	VarThreshold float64 `toml:"var_threshold" json:"var_threshold"`
}

// ClipsConfig controls where clips land and the duration policy applied to
// each recording session.
type ClipsConfig struct {
	OutputDirectory string `toml:"output_directory" json:"output_directory"`
	Prefix          string `toml:"prefix"           json:"prefix"`
	Format          string `toml:"format"           json:"format"`
	MinSeconds      int    `toml:"min_seconds"      json:"min_seconds"`
	MaxSeconds      int    `toml:"max_seconds"      json:"max_seconds"`
	FinalizeWaitMS  int    `toml:"finalize_wait_ms" json:"finalize_wait_ms"`
}

// LibraryConfig locates the SQLite clip index.
type LibraryConfig struct {
	Path string `toml:"path" json:"path"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// DemoConfig switches the daemon onto a synthetic frame source and file
// sink so the whole pipeline can run without a studio attached.
type DemoConfig struct {
	Enabled      bool `toml:"enabled"       json:"enabled"`
	BurstSeconds int  `toml:"burst_seconds" json:"burst_seconds"`
	QuietSeconds int  `toml:"quiet_seconds" json:"quiet_seconds"`
}

// Formats lists the container formats the recording sink can produce.
var Formats = []string{"mp4", "mkv", "mov", "ts", "flv"}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Studio: StudioConfig{
			Host: "localhost",
			Port: 4455,
		},
		Motion: MotionConfig{
			HighThreshold:    0.12,
			LowThreshold:     0.05,
			SettleSeconds:    2.0,
			SampleRate:       10,
			DiffCutoff:       25,
			BlurRadius:       10,
			DiffWeight:       0.6,
			BackgroundWeight: 0.4,
		},
		Background: BackgroundConfig{
			History:      500,
			VarThreshold: 50.0,
		},
		Clips: ClipsConfig{
			OutputDirectory: "/var/lib/clipwatch/clips",
			Prefix:          "clip",
			Format:          "mp4",
			MinSeconds:      5,
			MaxSeconds:      60,
			FinalizeWaitMS:  3000,
		},
		Library: LibraryConfig{
			Path: "/var/lib/clipwatch/clips.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Bind: "0.0.0.0:8080",
		},
		Demo: DemoConfig{
			Enabled:      false,
			BurstSeconds: 8,
			QuietSeconds: 12,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the cross-field constraints the state machine depends on.
func Validate(cfg Config) error {
	m := cfg.Motion
	if m.LowThreshold <= 0 {
		return fmt.Errorf("motion.low_threshold must be > 0, got %v", m.LowThreshold)
	}
	if m.HighThreshold > 1 {
		return fmt.Errorf("motion.high_threshold must be <= 1, got %v", m.HighThreshold)
	}
	if m.LowThreshold >= m.HighThreshold {
		return fmt.Errorf("motion.low_threshold (%v) must be below motion.high_threshold (%v)", m.LowThreshold, m.HighThreshold)
	}
	if m.SettleSeconds < 0 {
		return fmt.Errorf("motion.settle_seconds must be >= 0, got %v", m.SettleSeconds)
	}
	if m.SampleRate <= 0 {
		return fmt.Errorf("motion.sample_rate must be > 0, got %d", m.SampleRate)
	}
	if m.DiffCutoff < 1 || m.DiffCutoff > 255 {
		return fmt.Errorf("motion.diff_cutoff must be in [1,255], got %d", m.DiffCutoff)
	}
	if m.BlurRadius < 0 {
		return fmt.Errorf("motion.blur_radius must be >= 0, got %d", m.BlurRadius)
	}
	if m.DiffWeight < 0 || m.BackgroundWeight < 0 {
		return fmt.Errorf("motion signal weights must be >= 0")
	}

	if cfg.Background.History < 1 {
		return fmt.Errorf("background.history must be >= 1, got %d", cfg.Background.History)
	}
	if cfg.Background.VarThreshold <= 0 {
		return fmt.Errorf("background.var_threshold must be > 0, got %v", cfg.Background.VarThreshold)
	}

	c := cfg.Clips
	if c.OutputDirectory == "" {
		return fmt.Errorf("clips.output_directory must not be empty")
	}
	if c.MinSeconds >= c.MaxSeconds {
		return fmt.Errorf("clips.min_seconds (%d) must be below clips.max_seconds (%d)", c.MinSeconds, c.MaxSeconds)
	}
	if !validFormat(c.Format) {
		return fmt.Errorf("clips.format %q not recognized (allowed: %v)", c.Format, Formats)
	}
	if c.FinalizeWaitMS < 0 {
		return fmt.Errorf("clips.finalize_wait_ms must be >= 0, got %d", c.FinalizeWaitMS)
	}

	if cfg.Library.Path == "" {
		return fmt.Errorf("library.path must not be empty")
	}
	if cfg.Studio.Port <= 0 || cfg.Studio.Port > 65535 {
		return fmt.Errorf("studio.port must be a valid TCP port, got %d", cfg.Studio.Port)
	}
	return nil
}

func validFormat(f string) bool {
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}

// SettleDuration returns the settle window as a time.Duration.
func (m MotionConfig) SettleDuration() time.Duration {
	return time.Duration(m.SettleSeconds * float64(time.Second))
}

// TickInterval returns the pause between sampling ticks.
func (m MotionConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(m.SampleRate)
}

// MinDuration returns the minimum clip length as a time.Duration.
func (c ClipsConfig) MinDuration() time.Duration {
	return time.Duration(c.MinSeconds) * time.Second
}

// MaxDuration returns the hard ceiling on clip length.
func (c ClipsConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxSeconds) * time.Second
}

// FinalizeWait returns the bounded wait applied while the sink finalizes
// an artifact.
func (c ClipsConfig) FinalizeWait() time.Duration {
	return time.Duration(c.FinalizeWaitMS) * time.Millisecond
}
