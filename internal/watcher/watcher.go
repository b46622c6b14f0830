// Package watcher runs the sampling loop that drives clipwatchd: pull a
// frame, estimate motion, update the settle tracker, and let the session
// manager open or close a recording around each burst. The loop owns the
// estimator, the settle state, and the session exclusively; commands from
// the HTTP layer are serviced between ticks on a channel, never
// concurrently with them.
package watcher

import (
	"context"
	"errors"
	"image"
	"log"
	"sync"
	"time"

	"github.com/clipwatch/clipwatch/internal/config"
	"github.com/clipwatch/clipwatch/internal/motion"
	"github.com/clipwatch/clipwatch/internal/session"
	"github.com/clipwatch/clipwatch/internal/source"
	"github.com/clipwatch/clipwatch/internal/telemetry"
	"github.com/clipwatch/clipwatch/internal/ws"
)

// Analyzer is the motion-estimation surface the loop consumes. Satisfied
// by *motion.Estimator; tests script it.
type Analyzer interface {
	Analyze(frame image.Image) (float64, error)
	Reset()
}

// Store indexes committed clips. Satisfied by *library.Library.
type Store interface {
	Add(rec *session.ClipRecord) (int64, error)
}

// Command is an external instruction sent to the loop via the Commands
// channel. The Reply channel receives exactly one result.
type Command struct {
	Type  string
	Reply chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Snapshot is a point-in-time view of the loop for the status API.
type Snapshot struct {
	Paused           bool      `json:"paused"`
	Recording        bool      `json:"recording"`
	Level            float64   `json:"motion_level"`
	Settled          bool      `json:"settled"`
	SessionPath      string    `json:"session_path,omitempty"`
	SessionStartedAt time.Time `json:"session_started_at,omitempty"`
}

// Runner owns the sampling loop.
type Runner struct {
	Hub *ws.Hub
	Cfg config.Config
	Log *log.Logger

	// Commands receives external commands (start, stop, pause, resume,
	// reset-motion). The loop services it between ticks.
	Commands chan Command

	src      source.FrameSource
	sink     source.RecordingSink
	analyzer Analyzer
	settle   *motion.Settle
	sessions *session.Manager
	store    Store

	clipCallback    func(*session.ClipRecord)
	discardCallback func(path string, seconds float64)

	paused bool

	mu         sync.Mutex
	snap       Snapshot
	lastMotion time.Time // last motion event broadcast
}

// Deps bundles the collaborators a Runner needs.
type Deps struct {
	Source   source.FrameSource
	Sink     source.RecordingSink
	Analyzer Analyzer
	Store    Store
	Hub      *ws.Hub
	Logger   *log.Logger
}

// New creates a runner wired to the given collaborators. A nil Analyzer
// gets the real estimator built from cfg.
func New(cfg config.Config, deps Deps) (*Runner, error) {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Analyzer == nil {
		deps.Analyzer = motion.NewEstimator(motion.Params{
			DiffCutoff:       cfg.Motion.DiffCutoff,
			BlurRadius:       cfg.Motion.BlurRadius,
			DiffWeight:       cfg.Motion.DiffWeight,
			BackgroundWeight: cfg.Motion.BackgroundWeight,
			History:          cfg.Background.History,
			VarThreshold:     cfg.Background.VarThreshold,
		})
	}

	mgr, err := session.NewManager(session.Options{
		Dir:          cfg.Clips.OutputDirectory,
		Prefix:       cfg.Clips.Prefix,
		Format:       cfg.Clips.Format,
		MinDuration:  cfg.Clips.MinDuration(),
		MaxDuration:  cfg.Clips.MaxDuration(),
		FinalizeWait: cfg.Clips.FinalizeWait(),
		Logger:       deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{
		Hub:      deps.Hub,
		Cfg:      cfg,
		Log:      deps.Logger,
		Commands: make(chan Command, 4),
		src:      deps.Source,
		sink:     deps.Sink,
		analyzer: deps.Analyzer,
		settle:   motion.NewSettle(cfg.Motion.LowThreshold, cfg.Motion.SettleDuration()),
		sessions: mgr,
		store:    deps.Store,
	}, nil
}

// SetClipCallback registers a function called when a session commits.
func (r *Runner) SetClipCallback(fn func(*session.ClipRecord)) {
	r.clipCallback = fn
}

// SetDiscardCallback registers a function called when a session discards.
func (r *Runner) SetDiscardCallback(fn func(path string, seconds float64)) {
	r.discardCallback = fn
}

// State returns the loop snapshot for the status API.
func (r *Runner) State() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Run connects the frame source and drives the sampling loop until the
// context is cancelled or a fatal error occurs. On the way out it performs
// one graceful teardown: an active session is stopped (and reported), then
// the source is released.
func (r *Runner) Run(ctx context.Context, setState func(string)) error {
	setState("CONNECTING")
	if err := r.src.Connect(); err != nil {
		r.logEvent("error", "frame source connect failed: "+err.Error())
		return err
	}
	defer r.src.Disconnect()

	// Every connect is a stream discontinuity. A baseline kept from
	// before the drop would diff against the first new frame as
	// full-frame motion, and a settled quiet run from before the drop
	// has no meaning now.
	r.analyzer.Reset()
	r.settle.Reset()

	setState("WATCHING")
	r.logEvent("info", "watcher started")

	ticker := time.NewTicker(r.Cfg.Motion.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.teardown(setState)
			return nil

		case cmd := <-r.Commands:
			r.handleCommand(cmd, time.Now(), setState)

		case <-ticker.C:
			if err := r.step(time.Now(), setState); err != nil {
				r.logEvent("error", "watcher stopping: "+err.Error())
				r.teardown(setState)
				return err
			}
		}
	}
}

// step runs exactly one sampling tick at now. A returned error is fatal to
// the loop; per-tick conditions (no frame available) are not errors.
func (r *Runner) step(now time.Time, setState func(string)) error {
	if r.paused {
		return nil
	}

	frame, err := r.src.CurrentFrame()
	if err != nil {
		return err
	}
	if frame == nil {
		return nil // idle tick
	}

	// Estimator errors (dimension mismatch) mean the stream itself is
	// broken; they are fatal.
	level, err := r.analyzer.Analyze(frame)
	if err != nil {
		return err
	}

	r.settle.Update(level, now)
	r.publishSample(level, now)

	active := r.sessions.Active()
	switch {
	case !active && level >= r.Cfg.Motion.HighThreshold:
		r.startSession(now, level, setState)

	case active && level < r.Cfg.Motion.LowThreshold && r.settle.IsSettled():
		r.stopSession(now, setState)

	case active && level >= r.Cfg.Motion.LowThreshold:
		// The settle tracker already clears itself on motion; resetting
		// here keeps the stop decision correct even if update ordering
		// ever changes.
		r.settle.Reset()
	}

	if r.sessions.Active() && r.sessions.ShouldForceStop(now) {
		r.logEvent("info", "max clip duration reached, forcing stop")
		r.stopSession(now, setState)
	}

	return nil
}

// startSession opens a session and points the sink at its target path.
func (r *Runner) startSession(now time.Time, level float64, setState func(string)) {
	path, err := r.sessions.Start(now)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyActive) {
			return
		}
		r.logEvent("error", "session start failed: "+err.Error())
		return
	}

	if err := r.sink.StartRecording(path); err != nil {
		r.logEvent("error", "recording sink start failed: "+err.Error())
		// Nothing is being written; close the empty session quietly.
		_, _ = r.sessions.Stop(now)
		return
	}

	// The session must not inherit a quiet run that completed before it
	// opened, or the next below-threshold tick would close it instantly.
	// The stop decision starts counting from here.
	r.settle.Reset()

	setState("RECORDING")
	r.logEvent("info", "motion burst, recording to "+path)
	if r.Hub != nil {
		r.Hub.BroadcastJSON(telemetry.SessionStarted{
			Event: telemetry.Envelope(telemetry.EventSessionStarted, "watcher"),
			Path:  path,
			Level: level,
		})
	}
}

// stopSession closes the active session, reporting a saved clip or a
// discard. Safe to call when nothing is active.
func (r *Runner) stopSession(now time.Time, setState func(string)) {
	if !r.sessions.Active() {
		return
	}

	path := r.sessions.Path()
	startedAt := r.sessions.StartedAt()

	if err := r.sink.StopRecording(); err != nil {
		r.logEvent("error", "recording sink stop failed: "+err.Error())
	}

	setState("FINALIZING")
	rec, err := r.sessions.Stop(now)
	if err != nil {
		r.logEvent("error", "session stop failed: "+err.Error())
		setState("WATCHING")
		return
	}

	if rec == nil {
		seconds := now.Sub(startedAt).Seconds()
		r.logEvent("info", "clip too short, discarded "+path)
		if r.Hub != nil {
			r.Hub.BroadcastJSON(telemetry.SessionDiscarded{
				Event:   telemetry.Envelope(telemetry.EventSessionDiscarded, "watcher"),
				Path:    path,
				Seconds: seconds,
			})
		}
		if r.discardCallback != nil {
			r.discardCallback(path, seconds)
		}
	} else {
		if r.store != nil {
			if _, err := r.store.Add(rec); err != nil {
				r.logEvent("error", "clip index insert failed: "+err.Error())
			}
		}
		r.logEvent("info", "clip saved "+rec.Path)
		if r.Hub != nil {
			r.Hub.BroadcastJSON(telemetry.SessionSaved{
				Event:     telemetry.Envelope(telemetry.EventSessionSaved, "watcher"),
				Path:      rec.Path,
				Seconds:   rec.Seconds,
				SizeBytes: rec.SizeBytes,
			})
		}
		if r.clipCallback != nil {
			r.clipCallback(rec)
		}
	}

	setState("WATCHING")
}

// teardown performs the single graceful shutdown pass.
func (r *Runner) teardown(setState func(string)) {
	if r.sessions.Active() {
		r.logEvent("info", "shutdown with active session, stopping it")
		r.stopSession(time.Now(), setState)
	}
}

// handleCommand dispatches one external command between ticks at now.
func (r *Runner) handleCommand(cmd Command, now time.Time, setState func(string)) {
	switch cmd.Type {
	case "start":
		if r.sessions.Active() {
			cmd.Reply <- CommandResult{OK: false, Error: "a session is already recording"}
			return
		}
		r.startSession(now, 0, setState)
		if r.sessions.Active() {
			cmd.Reply <- CommandResult{OK: true, Message: "recording started at " + r.sessions.Path()}
		} else {
			cmd.Reply <- CommandResult{OK: false, Error: "recording failed to start"}
		}

	case "stop":
		if !r.sessions.Active() {
			cmd.Reply <- CommandResult{OK: false, Error: "no session is recording"}
			return
		}
		r.stopSession(now, setState)
		cmd.Reply <- CommandResult{OK: true, Message: "recording stopped"}

	case "pause":
		if r.paused {
			cmd.Reply <- CommandResult{OK: true, Message: "watcher already paused"}
			return
		}
		if r.sessions.Active() {
			r.stopSession(now, setState)
		}
		r.paused = true
		setState("PAUSED")
		r.logEvent("info", "watcher paused by user")
		cmd.Reply <- CommandResult{OK: true, Message: "watcher paused"}

	case "resume":
		if !r.paused {
			cmd.Reply <- CommandResult{OK: true, Message: "watcher already running"}
			return
		}
		r.paused = false
		r.settle.Reset()
		setState("WATCHING")
		r.logEvent("info", "watcher resumed by user")
		cmd.Reply <- CommandResult{OK: true, Message: "watcher resumed"}

	case "reset-motion":
		r.analyzer.Reset()
		r.settle.Reset()
		r.logEvent("info", "motion state reset by user")
		cmd.Reply <- CommandResult{OK: true, Message: "motion baseline and settle timer reset"}

	default:
		cmd.Reply <- CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
	r.updateSnapshot(r.State().Level, now)
}

// publishSample updates the status snapshot every tick and broadcasts a
// motion event at most once per second to keep the hub quiet.
func (r *Runner) publishSample(level float64, now time.Time) {
	r.updateSnapshot(level, now)

	r.mu.Lock()
	due := now.Sub(r.lastMotion) >= time.Second
	if due {
		r.lastMotion = now
	}
	r.mu.Unlock()

	if due && r.Hub != nil {
		r.Hub.BroadcastJSON(telemetry.Motion{
			Event:   telemetry.Envelope(telemetry.EventMotion, "watcher"),
			Level:   level,
			Settled: r.settle.IsSettled(),
			Active:  r.sessions.Active(),
		})
	}
}

func (r *Runner) updateSnapshot(level float64, now time.Time) {
	snap := Snapshot{
		Paused:    r.paused,
		Recording: r.sessions.Active(),
		Level:     level,
		Settled:   r.settle.IsSettled(),
	}
	if snap.Recording {
		snap.SessionPath = r.sessions.Path()
		snap.SessionStartedAt = r.sessions.StartedAt()
	}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
}

func (r *Runner) logEvent(level, message string) {
	r.Log.Printf("watcher: %s", message)
	if r.Hub != nil {
		r.Hub.BroadcastJSON(telemetry.LogLine{
			Event:   telemetry.Envelope(telemetry.EventLog, "watcher"),
			Level:   level,
			Message: message,
		})
	}
}
