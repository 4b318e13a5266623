// Package events delivers fire-and-forget notifications at phase and step
// boundaries. Sinks are advisory: a failing sink never affects orchestration.
package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Type identifies the event category.
type Type string

const (
	TypeRunStarted    Type = "run_started"
	TypePhaseStarted  Type = "phase_started"
	TypeStepCompleted Type = "step_completed"
	TypeRunCompleted  Type = "run_completed"
	TypeRunFailed     Type = "run_failed"
)

// Event is one observer notification.
type Event struct {
	Type      Type           `json:"type"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Sink consumes events. Implementations must not block orchestration and
// must swallow their own failures.
type Sink interface {
	OnEvent(event Event)
}

// Nop discards all events. It is the default sink.
type Nop struct{}

func (Nop) OnEvent(Event) {}

// LogSink writes events through a structured logger.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) OnEvent(e Event) {
	s.Log.Info().
		Str("event", string(e.Type)).
		Str("run_id", e.RunID).
		Fields(e.Data).
		Msg("orchestration event")
}

// Multi fans one event out to several sinks.
type Multi []Sink

func (m Multi) OnEvent(e Event) {
	for _, s := range m {
		if s != nil {
			s.OnEvent(e)
		}
	}
}
