// Package analytics forwards reader interaction events to a fire-and-forget
// sink. Emitting never blocks the caller and never fails it.
package analytics

import "time"

// EventPrefix is prepended to an interaction's action to form its event name.
const EventPrefix = "blog_"

// Sink accepts analytics events.
type Sink interface {
	Emit(name string, props map[string]any)
}

// Event is an emitted analytics event as handed to a Writer.
type Event struct {
	Name       string         `json:"event"`
	Properties map[string]any `json:"properties"`
	EmittedAt  time.Time      `json:"emittedAt"`
}

// EventName returns the analytics event name for an interaction action.
func EventName(action string) string {
	return EventPrefix + action
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(string, map[string]any) {}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string, props map[string]any)

func (f SinkFunc) Emit(name string, props map[string]any) { f(name, props) }
