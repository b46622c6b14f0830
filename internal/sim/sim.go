// Package sim provides a synthetic frame source and a file-backed recording
// sink so the whole pipeline can run without a studio attached. The source
// alternates motion bursts and quiet spells on a fixed cycle, which makes
// the daemon open and close sessions on its own — handy for demos and for
// exercising the state machine end to end.
package sim

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"os"
	"sync"
	"time"
)

const (
	frameWidth  = 160
	frameHeight = 120
	blockSize   = 28
)

// Source generates frames with a bright block that wanders during burst
// phases and holds still during quiet phases.
type Source struct {
	burst time.Duration
	quiet time.Duration

	started time.Time
	ticks   int
	rng     *rand.Rand
}

// NewSource creates a synthetic source with the given burst/quiet cycle.
func NewSource(burst, quiet time.Duration) *Source {
	if burst <= 0 {
		burst = 8 * time.Second
	}
	if quiet <= 0 {
		quiet = 12 * time.Second
	}
	return &Source{
		burst: burst,
		quiet: quiet,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Connect starts the cycle clock.
func (s *Source) Connect() error {
	s.started = time.Now()
	return nil
}

// Disconnect is a no-op for the simulator.
func (s *Source) Disconnect() {}

// CurrentFrame always has a frame available.
func (s *Source) CurrentFrame() (image.Image, error) {
	s.ticks++

	elapsed := time.Since(s.started)
	cycle := s.burst + s.quiet
	inBurst := elapsed%cycle < s.burst

	x, y := frameWidth/3, frameHeight/3
	if inBurst {
		// Wander fast enough that consecutive frames differ clearly.
		x = (s.ticks * 13) % (frameWidth - blockSize)
		y = (s.ticks * 7) % (frameHeight - blockSize)
	}

	img := image.NewGray(image.Rect(0, 0, frameWidth, frameHeight))
	for i := range img.Pix {
		img.Pix[i] = uint8(28 + s.rng.Intn(5))
	}
	for yy := y; yy < y+blockSize; yy++ {
		for xx := x; xx < x+blockSize; xx++ {
			img.SetGray(xx, yy, color.Gray{Y: 235})
		}
	}
	return img, nil
}

// Sink records to a plain file, appending chunks on a short interval until
// stopped, standing in for a real encoder.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	stop   chan struct{}
	done   chan struct{}
	active bool
}

// NewSink creates an idle sink.
func NewSink() *Sink {
	return &Sink{}
}

// StartRecording creates the artifact and starts the writer goroutine.
func (s *Sink) StartRecording(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return errors.New("sim: sink already recording")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	s.file = f
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.active = true

	go s.writeLoop(f, s.stop, s.done)
	return nil
}

// StopRecording stops the writer and closes the artifact, at which point
// it is finalized.
func (s *Sink) StopRecording() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return errors.New("sim: sink not recording")
	}
	stop, done := s.stop, s.done
	s.active = false
	s.mu.Unlock()

	close(stop)
	<-done
	return nil
}

// Recording reports whether the writer is running.
func (s *Sink) Recording() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, nil
}

func (s *Sink) writeLoop(f *os.File, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer f.Close()

	chunk := make([]byte, 4096)
	for i := range chunk {
		chunk[i] = byte(i)
	}

	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if _, err := f.Write(chunk); err != nil {
				return
			}
		}
	}
}
