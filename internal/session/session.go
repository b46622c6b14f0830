// Package session owns the recording-session lifecycle: allocating a target
// path when motion opens a session, enforcing the minimum/maximum duration
// policy when it closes, and discarding artifacts that are too short to
// keep. At most one session exists at a time.
package session

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrAlreadyActive is returned by Start while a session is open.
	ErrAlreadyActive = errors.New("recording session already active")
	// ErrNoActiveSession is returned by Stop when nothing is recording.
	ErrNoActiveSession = errors.New("no active recording session")
	// ErrPathCollision is returned when the timestamp-derived artifact
	// path already exists. Two starts inside the same second indicate a
	// defect in the caller's pacing, not a condition to paper over.
	ErrPathCollision = errors.New("artifact path already exists")
)

// ClipRecord is the immutable result of a successfully committed session.
type ClipRecord struct {
	Path      string        `json:"path"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"-"`
	Seconds   float64       `json:"duration_s"`
	SizeBytes int64         `json:"size_bytes"`
}

// Manager tracks the single active session and applies duration policy.
// It is owned by the sampling loop and is not safe for concurrent use.
type Manager struct {
	dir          string
	prefix       string
	format       string
	minDuration  time.Duration
	maxDuration  time.Duration
	finalizeWait time.Duration
	log          *log.Logger

	active    bool
	path      string
	startedAt time.Time
}

// Options configures a Manager.
type Options struct {
	Dir          string
	Prefix       string
	Format       string
	MinDuration  time.Duration
	MaxDuration  time.Duration
	FinalizeWait time.Duration
	Logger       *log.Logger
}

// NewManager creates a Manager and ensures the output directory exists.
func NewManager(opts Options) (*Manager, error) {
	if opts.Prefix == "" {
		opts.Prefix = "clip"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create clip directory: %w", err)
	}
	return &Manager{
		dir:          opts.Dir,
		prefix:       opts.Prefix,
		format:       opts.Format,
		minDuration:  opts.MinDuration,
		maxDuration:  opts.MaxDuration,
		finalizeWait: opts.FinalizeWait,
		log:          opts.Logger,
	}, nil
}

// Active reports whether a session is open.
func (m *Manager) Active() bool {
	return m.active
}

// Path returns the target artifact path of the active session, or "".
func (m *Manager) Path() string {
	return m.path
}

// StartedAt returns the start time of the active session.
func (m *Manager) StartedAt() time.Time {
	return m.startedAt
}

// Start opens a session at now and returns the target artifact path for
// the recording sink. The path embeds a second-resolution timestamp; a
// collision with an existing file fails rather than overwriting.
func (m *Manager) Start(now time.Time) (string, error) {
	if m.active {
		return "", ErrAlreadyActive
	}

	name := fmt.Sprintf("%s_%s.%s", m.prefix, now.Format("20060102_150405"), m.format)
	path := filepath.Join(m.dir, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrPathCollision, path)
	}

	m.active = true
	m.path = path
	m.startedAt = now
	return path, nil
}

// Stop closes the active session at now. A session shorter than the
// minimum duration is discarded: its artifact is deleted best-effort and
// Stop returns (nil, nil). Otherwise Stop waits (bounded) for the sink to
// finalize the artifact, measures it, and returns the ClipRecord.
func (m *Manager) Stop(now time.Time) (*ClipRecord, error) {
	if !m.active {
		return nil, ErrNoActiveSession
	}

	path := m.path
	startedAt := m.startedAt
	duration := now.Sub(startedAt)
	m.active = false
	m.path = ""
	m.startedAt = time.Time{}

	if duration < m.minDuration {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			// Disk cleanup failing does not un-discard the session.
			m.log.Printf("session: failed to delete short clip %s: %v", path, err)
		}
		return nil, nil
	}

	size := m.waitFinalized(path)
	return &ClipRecord{
		Path:      path,
		StartedAt: startedAt,
		Duration:  duration,
		Seconds:   duration.Seconds(),
		SizeBytes: size,
	}, nil
}

// ShouldForceStop reports whether the active session has hit the hard
// ceiling on clip length. The ceiling overrides the motion-settle decision.
func (m *Manager) ShouldForceStop(now time.Time) bool {
	return m.active && now.Sub(m.startedAt) >= m.maxDuration
}

// waitFinalized polls the artifact until its size is stable for two
// consecutive polls or the wait window closes, then returns the last
// observed size. A timeout is recoverable: the caller still gets a
// best-effort record.
func (m *Manager) waitFinalized(path string) int64 {
	const pollInterval = 100 * time.Millisecond

	deadline := time.Now().Add(m.finalizeWait)
	var last int64 = -1
	for {
		size := int64(0)
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		if size > 0 && size == last {
			return size
		}
		last = size
		if time.Now().After(deadline) {
			m.log.Printf("session: finalize wait elapsed for %s, using observed size %d", path, size)
			return size
		}
		time.Sleep(pollInterval)
	}
}
