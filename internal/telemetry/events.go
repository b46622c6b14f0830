// Package telemetry defines the typed events that flow over the WebSocket
// connection between clipwatchd and its clients. Components fill these
// structs and hand them to the hub; clipctl's watch command renders them.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat        EventType = "heartbeat"
	EventState            EventType = "state"
	EventMotion           EventType = "motion"
	EventSessionStarted   EventType = "session_started"
	EventSessionSaved     EventType = "session_saved"
	EventSessionDiscarded EventType = "session_discarded"
	EventLog              EventType = "log"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// Envelope stamps an event envelope with the current time.
func Envelope(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching
// the timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StateTransition is emitted whenever the daemon moves between operating
// states (e.g. WATCHING -> RECORDING).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// Motion carries a throttled sample of the current motion level so clients
// can plot activity without subscribing to every tick.
type Motion struct {
	Event
	Level   float64 `json:"level"`
	Settled bool    `json:"settled"`
	Active  bool    `json:"recording"`
}

// SessionStarted announces a newly opened recording session.
type SessionStarted struct {
	Event
	Path  string  `json:"path"`
	Level float64 `json:"level"`
}

// SessionSaved announces a committed clip.
type SessionSaved struct {
	Event
	Path      string  `json:"path"`
	Seconds   float64 `json:"duration_s"`
	SizeBytes int64   `json:"size_bytes"`
}

// SessionDiscarded announces a session that closed below the minimum
// duration and whose artifact was deleted.
type SessionDiscarded struct {
	Event
	Path    string  `json:"path"`
	Seconds float64 `json:"duration_s"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}
