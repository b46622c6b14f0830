// Package source defines the narrow contracts the sampling loop consumes:
// something that yields frames and something that records to a target path.
// Implementations live in the studio client and the demo simulator.
package source

import "image"

// FrameSource supplies at most one frame per sampling tick.
type FrameSource interface {
	// Connect establishes the upstream connection. Failure is fatal to
	// the loop and surfaced to the caller; no internal retry.
	Connect() error

	// CurrentFrame returns the latest frame, or (nil, nil) when no new
	// frame is available this tick — an idle tick, not an error. A
	// non-nil error means the source is gone.
	CurrentFrame() (image.Image, error)

	// Disconnect releases the connection. Safe to call when not
	// connected.
	Disconnect()
}

// RecordingSink persists the stream to disk between start and stop. Once
// StopRecording returns, the artifact at the given path is expected to
// become byte-complete within the session manager's finalize window.
type RecordingSink interface {
	StartRecording(path string) error
	StopRecording() error
	Recording() (bool, error)
}
