package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clipwatch.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 0.12, cfg.Motion.HighThreshold)
	assert.Equal(t, 0.05, cfg.Motion.LowThreshold)
	assert.Equal(t, 2.0, cfg.Motion.SettleSeconds)
	assert.Equal(t, 10, cfg.Motion.SampleRate)
	assert.Equal(t, 25, cfg.Motion.DiffCutoff)
	assert.Equal(t, 500, cfg.Background.History)
	assert.Equal(t, 50.0, cfg.Background.VarThreshold)
	assert.Equal(t, 5, cfg.Clips.MinSeconds)
	assert.Equal(t, 60, cfg.Clips.MaxSeconds)
	assert.Equal(t, "mp4", cfg.Clips.Format)
	assert.Equal(t, 4455, cfg.Studio.Port)

	require.NoError(t, Validate(cfg))
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[studio]
host = "obs.lan"
password = "hunter2"

[motion]
high_threshold = 0.2

[clips]
prefix = "cam1"
format = "mkv"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden keys take the file values.
	assert.Equal(t, "obs.lan", cfg.Studio.Host)
	assert.Equal(t, "hunter2", cfg.Studio.Password)
	assert.Equal(t, 0.2, cfg.Motion.HighThreshold)
	assert.Equal(t, "cam1", cfg.Clips.Prefix)
	assert.Equal(t, "mkv", cfg.Clips.Format)

	// Untouched keys keep their defaults.
	assert.Equal(t, 4455, cfg.Studio.Port)
	assert.Equal(t, 0.05, cfg.Motion.LowThreshold)
	assert.Equal(t, 60, cfg.Clips.MaxSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := writeConfig(t, "[motion\nhigh_threshold = 0.2")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
[motion]
low_threshold = 0.3
high_threshold = 0.1
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "low_threshold")
}

func TestValidateConstraints(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"low at or above high", func(c *Config) { c.Motion.LowThreshold = 0.12 }, "low_threshold"},
		{"low not positive", func(c *Config) { c.Motion.LowThreshold = 0 }, "low_threshold"},
		{"high above one", func(c *Config) { c.Motion.HighThreshold = 1.5 }, "high_threshold"},
		{"negative settle", func(c *Config) { c.Motion.SettleSeconds = -1 }, "settle_seconds"},
		{"zero sample rate", func(c *Config) { c.Motion.SampleRate = 0 }, "sample_rate"},
		{"cutoff out of range", func(c *Config) { c.Motion.DiffCutoff = 300 }, "diff_cutoff"},
		{"negative blur radius", func(c *Config) { c.Motion.BlurRadius = -1 }, "blur_radius"},
		{"negative weight", func(c *Config) { c.Motion.DiffWeight = -0.1 }, "weights"},
		{"zero history", func(c *Config) { c.Background.History = 0 }, "history"},
		{"zero var threshold", func(c *Config) { c.Background.VarThreshold = 0 }, "var_threshold"},
		{"empty output dir", func(c *Config) { c.Clips.OutputDirectory = "" }, "output_directory"},
		{"min not below max", func(c *Config) { c.Clips.MinSeconds = 60 }, "min_seconds"},
		{"unknown format", func(c *Config) { c.Clips.Format = "avi" }, "format"},
		{"negative finalize wait", func(c *Config) { c.Clips.FinalizeWaitMS = -1 }, "finalize_wait_ms"},
		{"empty library path", func(c *Config) { c.Library.Path = "" }, "library.path"},
		{"bad studio port", func(c *Config) { c.Studio.Port = 70000 }, "port"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestZeroSettleIsAllowed(t *testing.T) {
	cfg := Default()
	cfg.Motion.SettleSeconds = 0
	assert.NoError(t, Validate(cfg))
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 2*time.Second, cfg.Motion.SettleDuration())
	assert.Equal(t, 100*time.Millisecond, cfg.Motion.TickInterval())
	assert.Equal(t, 5*time.Second, cfg.Clips.MinDuration())
	assert.Equal(t, time.Minute, cfg.Clips.MaxDuration())
	assert.Equal(t, 3*time.Second, cfg.Clips.FinalizeWait())

	cfg.Motion.SettleSeconds = 1.5
	assert.Equal(t, 1500*time.Millisecond, cfg.Motion.SettleDuration())
}

func TestListProfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garage.toml"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "porch.toml"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "backup.toml.d"), 0o755))

	profiles, err := ListProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	names := []string{profiles[0].Name, profiles[1].Name}
	assert.Contains(t, names, "garage")
	assert.Contains(t, names, "porch")
	for _, p := range profiles {
		assert.Equal(t, dir, filepath.Dir(p.Path))
	}
}

func TestListProfilesMissingDir(t *testing.T) {
	profiles, err := ListProfiles(filepath.Join(t.TempDir(), "nope"))
	assert.NoError(t, err)
	assert.Empty(t, profiles)
}
