package ctl

import (
	"fmt"
	"strings"
)

// Start forces a recording session to open immediately, bypassing the
// motion trigger.
func Start(baseURL string, jsonOutput bool) error {
	return triggerAction(baseURL, "start", "STARTED", jsonOutput)
}

// Stop closes the active recording session. Duration policy still applies,
// so a too-short session is discarded.
func Stop(baseURL string, jsonOutput bool) error {
	return triggerAction(baseURL, "stop", "STOPPED", jsonOutput)
}

// Pause suspends motion watching. An active session is closed first.
func Pause(baseURL string, jsonOutput bool) error {
	return watcherControl(baseURL, "/api/pause", "PAUSED", jsonOutput)
}

// Resume restarts motion watching after a pause.
func Resume(baseURL string, jsonOutput bool) error {
	return watcherControl(baseURL, "/api/resume", "RESUMED", jsonOutput)
}

// ResetMotion clears the motion baseline and settle timer, useful after a
// scene or lighting change.
func ResetMotion(baseURL string, jsonOutput bool) error {
	return watcherControl(baseURL, "/api/reset-motion", "RESET", jsonOutput)
}

func triggerAction(baseURL, action, label string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var result struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	body := map[string]string{"action": action}
	if err := postJSON(baseURL, "/api/trigger", body, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	if result.OK {
		fmt.Printf("\n  %s  %s\n\n", colorize(green, label), result.Message)
	} else {
		fmt.Printf("\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
	}
	return nil
}

func watcherControl(baseURL, path, label string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var result struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := postJSON(baseURL, path, nil, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	if result.OK {
		fmt.Printf("\n  %s  %s\n\n", colorize(green, label), result.Message)
	} else {
		fmt.Printf("\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
	}
	return nil
}
