// Package app wires together the HTTP server, WebSocket hub, clip library,
// and the motion watcher. It owns the daemon's lifecycle and is the single
// source of truth for the current operating state.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clipwatch/clipwatch/internal/config"
	"github.com/clipwatch/clipwatch/internal/library"
	"github.com/clipwatch/clipwatch/internal/session"
	"github.com/clipwatch/clipwatch/internal/sim"
	"github.com/clipwatch/clipwatch/internal/source"
	"github.com/clipwatch/clipwatch/internal/studio"
	"github.com/clipwatch/clipwatch/internal/telemetry"
	"github.com/clipwatch/clipwatch/internal/watcher"
	"github.com/clipwatch/clipwatch/internal/ws"
)

// reconnectDelay paces watcher restarts after a fatal source error.
const reconnectDelay = 5 * time.Second

const logBufCap = 500

type logEntry struct {
	TS      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// runStats counts what happened since the daemon started. Library totals
// persist across restarts; these do not.
type runStats struct {
	mu           sync.Mutex
	ClipsSaved   int
	Discarded    int
	BytesSaved   int64
	SecondsSaved float64
	LastClipAt   string
}

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	Bind       string
	ConfigPath string
}

// App is the top-level daemon process. It manages the HTTP server, the
// WebSocket event hub, the clip library, and the watcher loop.
type App struct {
	log    *log.Logger
	bind   string
	server *http.Server

	cfgMu      sync.RWMutex
	cfg        config.Config
	configPath string

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, WATCHING, etc.)

	wsHub   *ws.Hub
	lib     *library.Library
	watcher *watcher.Runner

	logBufMu sync.Mutex
	logBuf   []logEntry

	stats runStats
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) *App {
	a := &App{
		log:        opts.Logger,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(),
	}
	a.state.Store("BOOTING")
	return a
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker, and the
// watcher loop. It blocks until the context is cancelled or the server
// returns an error.
func (a *App) Run(ctx context.Context) error {
	cfg := a.getConfig()

	bind := a.bind
	if bind == "" && cfg.Server.Bind != "" {
		bind = cfg.Server.Bind
	}
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	lib, err := library.Open(cfg.Library.Path)
	if err != nil {
		return fmt.Errorf("open clip library: %w", err)
	}
	a.lib = lib
	defer lib.Close()

	src, sink := a.buildSourceSink(cfg)
	r, err := watcher.New(cfg, watcher.Deps{
		Source: src,
		Sink:   sink,
		Store:  lib,
		Hub:    a.wsHub,
		Logger: a.log,
	})
	if err != nil {
		return err
	}
	r.SetClipCallback(a.onClipSaved)
	r.SetDiscardCallback(a.onClipDiscarded)
	a.watcher = r

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/config/profiles", a.handleConfigProfiles)
	mux.HandleFunc("/api/reload", a.handleReload)
	mux.HandleFunc("/api/clips", a.handleClips)
	mux.HandleFunc("/api/stats", a.handleStats)
	mux.HandleFunc("/api/logs", a.handleLogs)
	mux.HandleFunc("/api/system", a.handleSystem)
	mux.HandleFunc("/api/trigger", a.handleTrigger)
	mux.HandleFunc("/api/pause", a.handlePause)
	mux.HandleFunc("/api/resume", a.handleResume)
	mux.HandleFunc("/api/reset-motion", a.handleResetMotion)
	mux.Handle("/ws", a.wsHub.Handler())

	a.server = &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Printf("listening on http://%s", bind)
	a.appendLog("info", "daemon started, listening on "+bind)

	go a.wsHub.Run(ctx)
	go a.heartbeatLoop(ctx)
	go a.watcherLoop(ctx)

	go func() {
		<-ctx.Done()
		a.log.Printf("shutdown requested")
		_ = a.server.Shutdown(context.Background())
	}()

	return a.server.Serve(ln)
}

// buildSourceSink returns the frame source and recording sink for the
// configured mode. In demo mode both are synthetic; otherwise one studio
// client serves as both ends of the pipeline.
func (a *App) buildSourceSink(cfg config.Config) (source.FrameSource, source.RecordingSink) {
	if cfg.Demo.Enabled {
		a.log.Printf("demo mode: synthetic frames, file-backed sink")
		src := sim.NewSource(
			time.Duration(cfg.Demo.BurstSeconds)*time.Second,
			time.Duration(cfg.Demo.QuietSeconds)*time.Second,
		)
		return src, sim.NewSink()
	}
	c := studio.NewClient(cfg.Studio, a.log)
	return c, c
}

// watcherLoop runs the watcher and restarts it after fatal errors, which
// almost always mean the studio connection dropped.
func (a *App) watcherLoop(ctx context.Context) {
	for {
		err := a.watcher.Run(ctx, a.transition)
		if err == nil || ctx.Err() != nil {
			return
		}
		a.appendLog("error", "watcher stopped: "+err.Error())
		a.transition("CONNECTING")

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Load().(string)
	if old == newState {
		return
	}
	a.state.Store(newState)

	a.wsHub.BroadcastJSON(telemetry.StateTransition{
		Event: telemetry.Envelope(telemetry.EventState, "clipwatchd"),
		From:  old,
		To:    newState,
	})
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.Envelope(telemetry.EventHeartbeat, "clipwatchd"),
				State:         a.state.Load().(string),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
			})
		}
	}
}

func (a *App) onClipSaved(rec *session.ClipRecord) {
	a.stats.mu.Lock()
	a.stats.ClipsSaved++
	a.stats.BytesSaved += rec.SizeBytes
	a.stats.SecondsSaved += rec.Seconds
	a.stats.LastClipAt = telemetry.NowTS()
	a.stats.mu.Unlock()

	a.appendLog("info", fmt.Sprintf("clip saved %s (%.1fs, %d bytes)", rec.Path, rec.Seconds, rec.SizeBytes))
}

func (a *App) onClipDiscarded(path string, seconds float64) {
	a.stats.mu.Lock()
	a.stats.Discarded++
	a.stats.mu.Unlock()

	a.appendLog("info", fmt.Sprintf("clip discarded %s (%.1fs, below minimum)", path, seconds))
}

func (a *App) getConfig() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// appendLog records an entry in the in-memory ring served by /api/logs.
func (a *App) appendLog(level, message string) {
	a.logBufMu.Lock()
	a.logBuf = append(a.logBuf, logEntry{
		TS:      telemetry.NowTS(),
		Level:   level,
		Message: message,
	})
	if len(a.logBuf) > logBufCap {
		a.logBuf = a.logBuf[len(a.logBuf)-logBufCap:]
	}
	a.logBufMu.Unlock()
}
