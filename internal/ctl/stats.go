package ctl

import (
	"fmt"
	"strings"
	"time"
)

// Stats shows aggregate clip statistics from the daemon.
func Stats(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		TotalClips     int     `json:"total_clips"`
		TotalBytes     int64   `json:"total_bytes"`
		TotalSeconds   float64 `json:"total_seconds"`
		LastClipAt     string  `json:"last_clip_at"`
		SavedSinceBoot int     `json:"saved_since_boot"`
		Discarded      int     `json:"discarded"`
		UptimeSeconds  int64   `json:"uptime_seconds"`
	}
	if err := getJSON(baseURL, "/api/stats", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  CLIP STATISTICS"))
	fmt.Println("  " + strings.Repeat("─", 42))
	fmt.Printf("  Uptime:          %s\n", formatDuration(time.Duration(resp.UptimeSeconds)*time.Second))
	fmt.Printf("  Total clips:     %d\n", resp.TotalClips)
	fmt.Printf("  Total footage:   %s\n", formatDuration(time.Duration(resp.TotalSeconds*float64(time.Second))))
	fmt.Printf("  Total data:      %s\n", formatBytes(resp.TotalBytes))
	fmt.Printf("  Saved (boot):    %d\n", resp.SavedSinceBoot)
	fmt.Printf("  Discarded:       %d\n", resp.Discarded)

	if resp.LastClipAt != "" {
		fmt.Printf("  Last clip:       %s\n", resp.LastClipAt)
	} else {
		fmt.Printf("  Last clip:       none\n")
	}

	fmt.Println()
	return nil
}
