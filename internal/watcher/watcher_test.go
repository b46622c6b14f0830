package watcher

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipwatch/clipwatch/internal/config"
	"github.com/clipwatch/clipwatch/internal/session"
)

// scriptedAnalyzer replays a fixed level sequence, one value per Analyze.
type scriptedAnalyzer struct {
	levels []float64
	i      int
	resets int
}

func (s *scriptedAnalyzer) Analyze(image.Image) (float64, error) {
	if s.i >= len(s.levels) {
		return s.levels[len(s.levels)-1], nil
	}
	v := s.levels[s.i]
	s.i++
	return v, nil
}

func (s *scriptedAnalyzer) Reset() { s.resets++ }

// stubSource always has a frame unless drained.
type stubSource struct {
	frames  int
	noFrame bool
}

func (s *stubSource) Connect() error { return nil }
func (s *stubSource) Disconnect()    {}
func (s *stubSource) CurrentFrame() (image.Image, error) {
	if s.noFrame {
		return nil, nil
	}
	s.frames++
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

// stubSink creates a non-empty artifact on start so the commit path has a
// file to measure.
type stubSink struct {
	started []string
	stops   int
}

func (s *stubSink) StartRecording(path string) error {
	s.started = append(s.started, path)
	return os.WriteFile(path, make([]byte, 2048), 0o644)
}

func (s *stubSink) StopRecording() error {
	s.stops++
	return nil
}

func (s *stubSink) Recording() (bool, error) { return len(s.started) > s.stops, nil }

type stubStore struct {
	added []*session.ClipRecord
}

func (s *stubStore) Add(rec *session.ClipRecord) (int64, error) {
	s.added = append(s.added, rec)
	return int64(len(s.added)), nil
}

type fixture struct {
	runner *Runner
	source *stubSource
	sink   *stubSink
	store  *stubStore
	states []string
}

func newFixture(t *testing.T, levels []float64, mutate func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Clips.OutputDirectory = t.TempDir()
	cfg.Clips.MinSeconds = 1
	cfg.Clips.MaxSeconds = 60
	cfg.Clips.FinalizeWaitMS = 10
	cfg.Motion.HighThreshold = 0.12
	cfg.Motion.LowThreshold = 0.05
	cfg.Motion.SettleSeconds = 2.0
	cfg.Motion.SampleRate = 10
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		source: &stubSource{},
		sink:   &stubSink{},
		store:  &stubStore{},
	}
	r, err := New(cfg, Deps{
		Source:   f.source,
		Sink:     f.sink,
		Analyzer: &scriptedAnalyzer{levels: levels},
		Store:    f.store,
	})
	require.NoError(t, err)
	f.runner = r
	return f
}

func (f *fixture) setState(s string) { f.states = append(f.states, s) }

// run steps the loop n times at the configured tick interval starting at
// base, returning the tick index (1-based) where the session closed, or 0.
func (f *fixture) run(t *testing.T, base time.Time, n int) (startedTick, stoppedTick int) {
	t.Helper()
	interval := f.runner.Cfg.Motion.TickInterval()
	wasActive := false
	for i := 0; i < n; i++ {
		now := base.Add(time.Duration(i) * interval)
		require.NoError(t, f.runner.step(now, f.setState))
		active := f.runner.sessions.Active()
		if active && !wasActive && startedTick == 0 {
			startedTick = i + 1
		}
		if !active && wasActive && stoppedTick == 0 {
			stoppedTick = i + 1
		}
		wasActive = active
	}
	return startedTick, stoppedTick
}

func TestScenarioBurstThenSettle(t *testing.T) {
	// Levels: two quiet ticks, a three-tick burst, then quiet. At 10 Hz
	// with a 2.0s settle window the session must open on tick 3 and
	// close on the first tick with a full 2.0s unbroken quiet run.
	levels := []float64{0, 0, 0.2, 0.2, 0.2}
	for len(levels) < 26 {
		levels = append(levels, 0.02)
	}

	f := newFixture(t, levels, nil)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	started, stopped := f.run(t, base, 26)
	assert.Equal(t, 3, started, "first level >= high threshold opens the session")
	assert.Equal(t, 26, stopped, "stops once the quiet run spans the settle window")

	require.Len(t, f.store.added, 1)
	rec := f.store.added[0]
	assert.InDelta(t, 2.3, rec.Seconds, 0.001, "elapsed from tick 3 to tick 26")
	assert.Equal(t, int64(2048), rec.SizeBytes)
	assert.Equal(t, 1, f.sink.stops)
}

func TestScenarioShortSessionDiscards(t *testing.T) {
	// min 5s, settle 1s: the burst ends almost immediately, the settle
	// condition is met at ~1.1s elapsed, and the resulting session is
	// far too short to keep.
	levels := []float64{0.2}
	for len(levels) < 15 {
		levels = append(levels, 0.02)
	}

	var discardedPath string
	f := newFixture(t, levels, func(cfg *config.Config) {
		cfg.Clips.MinSeconds = 5
		cfg.Motion.SettleSeconds = 1.0
	})
	f.runner.SetDiscardCallback(func(path string, seconds float64) {
		discardedPath = path
	})

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	started, stopped := f.run(t, base, 15)
	assert.Equal(t, 1, started)
	assert.NotZero(t, stopped)

	assert.Empty(t, f.store.added, "discarded sessions never reach the index")
	require.Len(t, f.sink.started, 1)
	assert.Equal(t, f.sink.started[0], discardedPath)

	_, statErr := os.Stat(discardedPath)
	assert.True(t, os.IsNotExist(statErr), "discarded artifact must be deleted")
}

func TestScenarioForceStopAtMaxDuration(t *testing.T) {
	// Motion never settles; the hard ceiling closes the session the
	// moment elapsed time reaches max duration.
	levels := []float64{0.2}

	f := newFixture(t, levels, func(cfg *config.Config) {
		cfg.Clips.MinSeconds = 1
		cfg.Clips.MaxSeconds = 2
	})

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	started, stopped := f.run(t, base, 25)
	assert.Equal(t, 1, started)
	assert.Equal(t, 21, stopped, "tick where elapsed active time reaches 2.0s")

	require.Len(t, f.store.added, 1)
	assert.InDelta(t, 2.0, f.store.added[0].Seconds, 0.001)
}

func TestIdleTickWithoutFrame(t *testing.T) {
	f := newFixture(t, []float64{0.9}, nil)
	f.source.noFrame = true

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	started, _ := f.run(t, base, 10)
	assert.Zero(t, started, "no frame means no analysis and no decisions")
	assert.Zero(t, f.source.frames)
}

func TestPausedLoopSkipsDecisions(t *testing.T) {
	f := newFixture(t, []float64{0.9}, nil)
	f.runner.paused = true

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	started, _ := f.run(t, base, 10)
	assert.Zero(t, started)
}

func TestCommandsStartStopAndReset(t *testing.T) {
	f := newFixture(t, []float64{0.0}, nil)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	reply := make(chan CommandResult, 1)
	f.runner.handleCommand(Command{Type: "start", Reply: reply}, base, f.setState)
	res := <-reply
	require.True(t, res.OK, res.Error)
	assert.True(t, f.runner.sessions.Active())

	// Second start is refused, not stacked.
	f.runner.handleCommand(Command{Type: "start", Reply: reply}, base.Add(time.Second), f.setState)
	res = <-reply
	assert.False(t, res.OK)

	f.runner.handleCommand(Command{Type: "stop", Reply: reply}, base.Add(2*time.Second), f.setState)
	res = <-reply
	require.True(t, res.OK, res.Error)
	assert.False(t, f.runner.sessions.Active())

	f.runner.handleCommand(Command{Type: "reset-motion", Reply: reply}, base.Add(3*time.Second), f.setState)
	res = <-reply
	require.True(t, res.OK)
	assert.Equal(t, 1, f.runner.analyzer.(*scriptedAnalyzer).resets)

	f.runner.handleCommand(Command{Type: "bogus", Reply: reply}, base.Add(4*time.Second), f.setState)
	res = <-reply
	assert.False(t, res.OK)
}

func TestManualStartSurvivesSettledQuietScene(t *testing.T) {
	// A long quiet spell leaves the settle tracker satisfied. A session
	// opened by hand in that state must not be closed by the very next
	// quiet tick; the quiet run that counts is the one after it opened.
	f := newFixture(t, []float64{0.02}, nil)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	f.run(t, base, 25)
	require.True(t, f.runner.settle.IsSettled(), "quiet ticks settle the tracker")

	start := base.Add(25 * 100 * time.Millisecond)
	reply := make(chan CommandResult, 1)
	f.runner.handleCommand(Command{Type: "start", Reply: reply}, start, f.setState)
	res := <-reply
	require.True(t, res.OK, res.Error)
	require.True(t, f.runner.sessions.Active())

	require.NoError(t, f.runner.step(start.Add(100*time.Millisecond), f.setState))
	assert.True(t, f.runner.sessions.Active(), "one quiet tick must not end a fresh session")

	// The session closes only once a full settle window elapses after
	// the start, long enough to clear the minimum duration.
	for i := 2; i <= 21; i++ {
		require.NoError(t, f.runner.step(start.Add(time.Duration(i)*100*time.Millisecond), f.setState))
	}
	assert.False(t, f.runner.sessions.Active())
	require.Len(t, f.store.added, 1)
	assert.InDelta(t, 2.1, f.store.added[0].Seconds, 0.001)
}

// flakySource serves a fixed frame and can be told to fail, standing in
// for a studio connection that drops mid-stream.
type flakySource struct {
	frame     image.Image
	failAfter int
	served    int
}

func (s *flakySource) Connect() error { return nil }
func (s *flakySource) Disconnect()    {}
func (s *flakySource) CurrentFrame() (image.Image, error) {
	s.served++
	if s.failAfter > 0 && s.served > s.failAfter {
		return nil, errors.New("stream reset by peer")
	}
	return s.frame, nil
}

func sceneFrame(x, y int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 30
	}
	for yy := y; yy < y+24; yy++ {
		for xx := x; xx < x+24; xx++ {
			img.SetGray(xx, yy, color.Gray{Y: 230})
		}
	}
	return img
}

func TestReconnectDropsStaleBaseline(t *testing.T) {
	// Uses the real estimator: after a dropped connection the loop
	// reconnects onto a static scene framed differently than before the
	// drop. Diffing against the stale baseline would read that as a
	// full-frame motion burst and open a spurious session.
	cfg := config.Default()
	cfg.Clips.OutputDirectory = t.TempDir()
	cfg.Clips.MinSeconds = 1
	cfg.Clips.FinalizeWaitMS = 10
	cfg.Motion.SampleRate = 100

	src := &flakySource{frame: sceneFrame(4, 4), failAfter: 3}
	sink := &stubSink{}
	store := &stubStore{}
	r, err := New(cfg, Deps{Source: src, Sink: sink, Store: store})
	require.NoError(t, err)

	var states []string
	setState := func(s string) { states = append(states, s) }

	err = r.Run(context.Background(), setState)
	require.Error(t, err, "transport failure is fatal to the loop")
	assert.Empty(t, sink.started)

	src.frame = sceneFrame(36, 20)
	src.failAfter = 0

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx, setState))
	assert.Empty(t, sink.started, "a static scene after reconnect must not open a session")
	assert.Empty(t, store.added)
}
