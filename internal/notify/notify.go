// Package notify implements the Notification Dispatch: fanning a small
// set of loop lifecycle events (phase start/finish, pause, error) out to
// zero or more pluggable sinks. Dispatch is fire-and-forget: a sink
// failure is logged and swallowed, never surfaced to the loop, per the
// error taxonomy's transient-local-failure classification for
// notification sinks.
package notify

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// EventType names the lifecycle moments the dispatcher fans out.
type EventType string

const (
	EventPhaseStart  EventType = "phase_start"
	EventPhaseFinish EventType = "phase_finish"
	EventPause       EventType = "pause"
	EventError       EventType = "error"
)

// Event is one lifecycle notification.
type Event struct {
	Type      EventType
	Phase     string
	Story     string
	Message   string
	Err       error
	Timestamp time.Time
}

// Sink delivers one Event. Implementations must not block indefinitely;
// Dispatch passes ctx through so a sink can honor cancellation/timeout.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to every registered Sink.
type Dispatcher struct {
	sinks  []Sink
	logger *log.Logger
}

// NewDispatcher creates a Dispatcher over the given sinks. A nil logger
// disables failure logging.
func NewDispatcher(logger *log.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Dispatch sends ev to every sink, swallowing and logging per-sink
// failures. It never returns an error: a broken notification sink must
// never fail the phase or loop it is reporting on.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	for _, s := range d.sinks {
		if err := s.Send(ctx, ev); err != nil {
			if d.logger != nil {
				d.logger.Warn("notify: sink delivery failed", "sink", s.Name(), "event", ev.Type, "error", err)
			}
		}
	}
}
