package ctl

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ClipsOptions configures the clips command.
type ClipsOptions struct {
	Limit  int
	Delete int64
	JSON   bool
}

// Clips lists indexed clips or deletes one by id.
func Clips(baseURL string, opts ClipsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Handle deletion.
	if opts.Delete > 0 {
		url := fmt.Sprintf("%s/api/clips?id=%d", baseURL, opts.Delete)
		req, err := http.NewRequest(http.MethodDelete, url, nil)
		if err != nil {
			return err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var result struct {
			OK      bool   `json:"ok"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(result)
		}
		if result.OK {
			fmt.Printf("\n  %s  %s\n\n", colorize(green, "DELETED"), result.Message)
		} else {
			fmt.Printf("\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
		}
		return nil
	}

	// List clips.
	path := "/api/clips"
	if opts.Limit > 0 {
		path += fmt.Sprintf("?limit=%d", opts.Limit)
	}

	var resp struct {
		Clips []struct {
			ID        int64   `json:"id"`
			Filename  string  `json:"filename"`
			StartedAt string  `json:"started_at"`
			Seconds   float64 `json:"duration_s"`
			SizeBytes int64   `json:"size_bytes"`
		} `json:"clips"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  CLIPS"))

	if len(resp.Clips) == 0 {
		fmt.Println(colorize(dim, "  ────────────────────────"))
		fmt.Println("  No clips found.")
	} else {
		t := newTable("  ", "ID", "Recorded", "Length", "Size", "Filename")
		t.alignRight(0)
		t.alignRight(3)
		for _, c := range resp.Clips {
			recorded := c.StartedAt
			if ts, err := time.Parse(time.RFC3339Nano, c.StartedAt); err == nil {
				recorded = ts.Local().Format("2006-01-02 15:04:05")
			}
			t.row(
				fmt.Sprintf("%d", c.ID),
				recorded,
				formatDuration(time.Duration(c.Seconds*float64(time.Second))),
				formatBytes(c.SizeBytes),
				c.Filename,
			)
		}
		t.flush()
	}
	fmt.Println()
	return nil
}
