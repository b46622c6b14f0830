package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name           string  `json:"name"`
	State          string  `json:"state"`
	Mode           string  `json:"mode"`
	Studio         string  `json:"studio"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	ClipsDir       string  `json:"clips_dir"`
	Paused         bool    `json:"paused"`
	Recording      bool    `json:"recording"`
	MotionLevel    float64 `json:"motion_level"`
	Settled        bool    `json:"settled"`
	SessionPath    string  `json:"session_path"`
	SessionSeconds float64 `json:"session_seconds"`
	Disk           *struct {
		TotalBytes     uint64 `json:"total_bytes"`
		UsedBytes      uint64 `json:"used_bytes"`
		AvailableBytes uint64 `json:"available_bytes"`
	} `json:"disk"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)
	if s.Paused {
		stateStr += colorize(dim, " (paused)")
	}

	fmt.Println()
	fmt.Println(header("  CLIPWATCH STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Mode:"), s.Mode)
	if s.Studio != "" {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Studio:"), s.Studio)
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %.3f\n", colorize(dim, "Motion:"), s.MotionLevel)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Clips:"), s.ClipsDir)

	if s.Recording {
		elapsed := formatDuration(time.Duration(s.SessionSeconds) * time.Second)
		fmt.Printf("  %-12s %s %s\n", colorize(dim, "Session:"),
			s.SessionPath, colorize(dim, "("+elapsed+")"))
	}
	if s.Disk != nil {
		fmt.Printf("  %-12s %s free of %s\n", colorize(dim, "Disk:"),
			formatBytes(int64(s.Disk.AvailableBytes)), formatBytes(int64(s.Disk.TotalBytes)))
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Println()

	return nil
}
