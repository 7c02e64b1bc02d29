// Package progress carries structured progress events from the
// provisioning phases to whatever is watching a run.
package progress

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// EventType represents the type of progress event.
type EventType string

const (
	// EventStateChanged indicates the workflow moved to a new state.
	EventStateChanged EventType = "state.changed"

	// EventNodeCreating indicates a create request is being submitted.
	EventNodeCreating EventType = "node.creating"
	// EventNodeCreated indicates the provider accepted the create request.
	EventNodeCreated EventType = "node.created"
	// EventAddressPolling indicates the node has no address yet.
	EventAddressPolling EventType = "address.polling"
	// EventAddressAssigned indicates the node got a usable address.
	EventAddressAssigned EventType = "address.assigned"

	// EventBootstrapConnecting indicates a shell connection attempt.
	EventBootstrapConnecting EventType = "bootstrap.connecting"
	// EventBootstrapRetry indicates a failed connection attempt will be retried.
	EventBootstrapRetry EventType = "bootstrap.retry"
	// EventBootstrapRunning indicates the script was uploaded and started.
	EventBootstrapRunning EventType = "bootstrap.running"
	// EventBootstrapSucceeded indicates the script exited zero.
	EventBootstrapSucceeded EventType = "bootstrap.succeeded"
	// EventBootstrapFailed indicates the bootstrap failed.
	EventBootstrapFailed EventType = "bootstrap.failed"
)

// Event represents a structured progress event.
type Event struct {
	Type      EventType
	RunID     string
	Node      string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// String formats the event as a single human-readable line.
func (e Event) String() string {
	parts := []string{string(e.Type)}
	if e.Node != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Node))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fieldParts := make([]string, len(keys))
		for i, k := range keys {
			fieldParts[i] = fmt.Sprintf("%s=%s", k, e.Fields[k])
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", ")))
	}
	return strings.Join(parts, " ")
}

// Observer receives progress events. Implementations must be safe for
// concurrent use when shared across batch runs.
type Observer interface {
	Event(event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Event implements Observer.
func (f ObserverFunc) Event(e Event) {
	f(e)
}

// Emit stamps e and sends it to o. A nil observer drops the event.
func Emit(o Observer, e Event) {
	if o == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	o.Event(e)
}

// Multi fans events out to every non-nil observer in order.
func Multi(observers ...Observer) Observer {
	var out multi
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multi []Observer

func (m multi) Event(e Event) {
	for _, o := range m {
		o.Event(e)
	}
}

// WithFields returns an observer that merges fields into every event,
// without overriding fields already set on the event.
func WithFields(o Observer, runID, node string, fields map[string]string) Observer {
	return ObserverFunc(func(e Event) {
		if e.RunID == "" {
			e.RunID = runID
		}
		if e.Node == "" {
			e.Node = node
		}
		if len(fields) > 0 {
			merged := make(map[string]string, len(fields)+len(e.Fields))
			for k, v := range fields {
				merged[k] = v
			}
			for k, v := range e.Fields {
				merged[k] = v
			}
			e.Fields = merged
		}
		Emit(o, e)
	})
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Event implements Observer.
func (r *Recorder) Event(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}
