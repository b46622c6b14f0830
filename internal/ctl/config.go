package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Decode into a generic map to preserve all fields for both display modes.
	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	// Decode into ordered sections for human-readable output.
	var cfg struct {
		Studio struct {
			Host   string `json:"host"`
			Port   int    `json:"port"`
			Source string `json:"source"`
		} `json:"studio"`
		Motion struct {
			HighThreshold    float64 `json:"high_threshold"`
			LowThreshold     float64 `json:"low_threshold"`
			SettleSeconds    float64 `json:"settle_seconds"`
			SampleRate       int     `json:"sample_rate"`
			DiffCutoff       int     `json:"diff_cutoff"`
			BlurRadius       int     `json:"blur_radius"`
			DiffWeight       float64 `json:"diff_weight"`
			BackgroundWeight float64 `json:"background_weight"`
		} `json:"motion"`
		Background struct {
			History      int     `json:"history"`
			VarThreshold float64 `json:"var_threshold"`
		} `json:"background"`
		Clips struct {
			OutputDirectory string `json:"output_directory"`
			Prefix          string `json:"prefix"`
			Format          string `json:"format"`
			MinSeconds      int    `json:"min_seconds"`
			MaxSeconds      int    `json:"max_seconds"`
			FinalizeWaitMS  int    `json:"finalize_wait_ms"`
		} `json:"clips"`
		Library struct {
			Path string `json:"path"`
		} `json:"library"`
		Logging struct {
			Level string `json:"level"`
		} `json:"logging"`
		Server struct {
			Bind string `json:"bind"`
		} `json:"server"`
		Demo struct {
			Enabled      bool `json:"enabled"`
			BurstSeconds int  `json:"burst_seconds"`
			QuietSeconds int  `json:"quiet_seconds"`
		} `json:"demo"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(header("  DAEMON CONFIGURATION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))

	section := func(name string) {
		fmt.Printf("\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Printf("    %-20s %v\n", colorize(dim, key+":"), val)
	}

	section("studio")
	field("host", cfg.Studio.Host)
	field("port", cfg.Studio.Port)
	field("source", cfg.Studio.Source)

	section("motion")
	field("high_threshold", cfg.Motion.HighThreshold)
	field("low_threshold", cfg.Motion.LowThreshold)
	field("settle_seconds", cfg.Motion.SettleSeconds)
	field("sample_rate", cfg.Motion.SampleRate)
	field("diff_cutoff", cfg.Motion.DiffCutoff)
	field("blur_radius", cfg.Motion.BlurRadius)
	field("diff_weight", cfg.Motion.DiffWeight)
	field("background_weight", cfg.Motion.BackgroundWeight)

	section("background")
	field("history", cfg.Background.History)
	field("var_threshold", cfg.Background.VarThreshold)

	section("clips")
	field("output_directory", cfg.Clips.OutputDirectory)
	field("prefix", cfg.Clips.Prefix)
	field("format", cfg.Clips.Format)
	field("min_seconds", cfg.Clips.MinSeconds)
	field("max_seconds", cfg.Clips.MaxSeconds)
	field("finalize_wait_ms", cfg.Clips.FinalizeWaitMS)

	section("library")
	field("path", cfg.Library.Path)

	section("logging")
	field("level", cfg.Logging.Level)

	section("server")
	field("bind", cfg.Server.Bind)

	section("demo")
	field("enabled", cfg.Demo.Enabled)
	field("burst_seconds", cfg.Demo.BurstSeconds)
	field("quiet_seconds", cfg.Demo.QuietSeconds)

	fmt.Println()

	return nil
}

// ConfigList shows the named config profiles available on the daemon host.
func ConfigList(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		ConfigDir string `json:"config_dir"`
		Profiles  []struct {
			Name string `json:"name"`
			Path string `json:"path"`
		} `json:"profiles"`
	}
	if err := getJSON(baseURL, "/api/config/profiles", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  CONFIG PROFILES"))
	fmt.Printf("  %s %s\n", colorize(dim, "dir:"), resp.ConfigDir)
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 42)))

	if len(resp.Profiles) == 0 {
		fmt.Println("  No profiles found.")
	} else {
		for _, p := range resp.Profiles {
			fmt.Printf("  %s  %s\n", colorize(bold, padRight(p.Name, 16)), colorize(dim, p.Path))
		}
	}
	fmt.Println()
	return nil
}
