package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/clipwatch/clipwatch/internal/config"
	"github.com/clipwatch/clipwatch/internal/library"
	"github.com/clipwatch/clipwatch/internal/telemetry"
	"github.com/clipwatch/clipwatch/internal/watcher"
)

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()
	snap := a.watcher.State()

	resp := map[string]any{
		"name":           "clipwatch",
		"state":          a.state.Load().(string),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"clips_dir":      cfg.Clips.OutputDirectory,
		"demo_enabled":   cfg.Demo.Enabled,
		"paused":         snap.Paused,
		"recording":      snap.Recording,
		"motion_level":   snap.Level,
		"settled":        snap.Settled,
	}

	if cfg.Demo.Enabled {
		resp["mode"] = "demo"
	} else {
		resp["mode"] = "live"
		resp["studio"] = fmt.Sprintf("%s:%d", cfg.Studio.Host, cfg.Studio.Port)
	}

	if snap.Recording {
		resp["session_path"] = snap.SessionPath
		resp["session_seconds"] = time.Since(snap.SessionStartedAt).Seconds()
	}

	if du := diskUsage(cfg.Clips.OutputDirectory); du != nil {
		resp["disk"] = du
	}

	writeJSON(w, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.getConfig())
}

func (a *App) handleConfigProfiles(w http.ResponseWriter, _ *http.Request) {
	profiles, err := config.ListProfiles(config.DefaultConfigDir())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if profiles == nil {
		profiles = []config.ProfileInfo{}
	}
	writeJSON(w, map[string]any{
		"config_dir": config.DefaultConfigDir(),
		"profiles":   profiles,
	})
}

// ---------------------------------------------------------------------------
// Clip library
// ---------------------------------------------------------------------------

func (a *App) handleClips(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		idStr := r.URL.Query().Get("id")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			jsonError(w, "id parameter required", http.StatusBadRequest)
			return
		}
		if err := a.lib.Remove(id); err != nil {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		a.appendLog("info", fmt.Sprintf("clip %d deleted via API", id))
		writeJSON(w, map[string]any{"ok": true, "message": fmt.Sprintf("deleted clip %d", id)})
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	clips, err := a.lib.List(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if clips == nil {
		clips = []library.Clip{}
	}
	writeJSON(w, map[string]any{"clips": clips})
}

func (a *App) handleStats(w http.ResponseWriter, _ *http.Request) {
	agg, err := a.lib.Aggregate()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	a.stats.mu.Lock()
	resp := map[string]any{
		"total_clips":       agg.TotalClips,
		"total_bytes":       agg.TotalBytes,
		"total_seconds":     agg.TotalSeconds,
		"last_clip_at":      agg.LastClipAt,
		"saved_since_boot":  a.stats.ClipsSaved,
		"discarded":         a.stats.Discarded,
		"uptime_seconds":    int64(time.Since(a.startedAt).Seconds()),
	}
	a.stats.mu.Unlock()

	writeJSON(w, resp)
}

// ---------------------------------------------------------------------------
// Logs + system + health
// ---------------------------------------------------------------------------

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	a.logBufMu.Lock()
	entries := make([]logEntry, len(a.logBuf))
	copy(entries, a.logBuf)
	a.logBufMu.Unlock()

	if lvl := r.URL.Query().Get("level"); lvl != "" {
		var filtered []logEntry
		for _, e := range entries {
			if e.Level == lvl {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}

	writeJSON(w, map[string]any{"logs": entries})
}

func (a *App) handleSystem(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	resp := map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"clips_dir":  cfg.Clips.OutputDirectory,
		"library":    cfg.Library.Path,
		"config_dir": config.DefaultConfigDir(),
	}
	if du := diskUsage(cfg.Clips.OutputDirectory); du != nil {
		resp["disk"] = du
	}
	writeJSON(w, resp)
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	checks := map[string]any{}
	allOK := true

	// Clip directory must be writable.
	tmpPath := filepath.Join(cfg.Clips.OutputDirectory, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["clips_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["clips_dir"] = map[string]any{"ok": true, "path": cfg.Clips.OutputDirectory}
	}

	// Library must answer queries.
	if _, err := a.lib.Aggregate(); err != nil {
		checks["library"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		checks["library"] = map[string]any{"ok": true, "path": cfg.Library.Path}
	}

	// Config file readable.
	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

// ---------------------------------------------------------------------------
// Watcher controls + reload
// ---------------------------------------------------------------------------

func (a *App) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Action == "" {
		req.Action = "start"
	}
	if req.Action != "start" && req.Action != "stop" {
		jsonError(w, "action must be start or stop", http.StatusBadRequest)
		return
	}

	writeCommandResult(w, a.sendCommand(req.Action))
}

func (a *App) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeCommandResult(w, a.sendCommand("pause"))
}

func (a *App) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeCommandResult(w, a.sendCommand("resume"))
}

func (a *App) handleResetMotion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeCommandResult(w, a.sendCommand("reset-motion"))
}

func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Accept optional profile name in body: {"profile": "garage"}
	var body struct {
		Profile string `json:"profile"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	loadPath := a.configPath
	if body.Profile != "" {
		candidate := filepath.Join(config.DefaultConfigDir(), body.Profile+".toml")
		if _, err := os.Stat(candidate); err != nil {
			jsonError(w, fmt.Sprintf("profile %q not found at %s", body.Profile, candidate), http.StatusNotFound)
			return
		}
		loadPath = candidate
	}

	if loadPath == "" {
		jsonError(w, "no config file path set", http.StatusInternalServerError)
		return
	}

	newCfg, err := config.Load(loadPath)
	if err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	a.cfgMu.Lock()
	a.cfg = newCfg
	a.configPath = loadPath
	a.cfgMu.Unlock()

	// The running watcher keeps its copy of the config until it next
	// reconnects; tell both the log ring and live watch clients so the
	// lag is visible, not silent.
	msg := "config reloaded from " + loadPath + "; running watcher applies it on next reconnect"
	a.appendLog("info", msg)
	a.wsHub.BroadcastJSON(telemetry.LogLine{
		Event:   telemetry.Envelope(telemetry.EventLog, "clipwatchd"),
		Level:   "info",
		Message: msg,
	})

	writeJSON(w, map[string]any{
		"ok":      true,
		"message": msg,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sendCommand sends a command to the watcher loop and waits (bounded) for
// the reply.
func (a *App) sendCommand(cmdType string) watcher.CommandResult {
	reply := make(chan watcher.CommandResult, 1)
	select {
	case a.watcher.Commands <- watcher.Command{Type: cmdType, Reply: reply}:
	case <-time.After(5 * time.Second):
		return watcher.CommandResult{OK: false, Error: "watcher not accepting commands"}
	}

	select {
	case res := <-reply:
		return res
	case <-time.After(5 * time.Second):
		return watcher.CommandResult{OK: false, Error: "timed out waiting for watcher"}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes a watcher.CommandResult as JSON.
func writeCommandResult(w http.ResponseWriter, result watcher.CommandResult) {
	w.Header().Set("Content-Type", "application/json")
	if !result.OK {
		w.WriteHeader(http.StatusConflict)
	}
	_ = json.NewEncoder(w).Encode(result)
}
