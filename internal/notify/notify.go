// Package notify is the user-visible notification boundary.
//
// Every terminal outcome of the pipeline (upload accept/reject, per-item
// success/failure, export success/failure) produces exactly one notification.
// Notifications are fire-and-forget: senders never block on delivery and
// never observe delivery errors.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Kind classifies a notification.
type Kind string

// Notification kinds.
const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notifier receives user-facing notifications.
type Notifier interface {
	// Notify delivers one message. Implementations must be safe for
	// concurrent use and must not block the caller.
	Notify(kind Kind, message string)
}

// LogNotifier renders notifications through a zerolog logger. It is the
// default sink when no interactive view is attached.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(kind Kind, message string) {
	switch kind {
	case KindError:
		n.logger.Error().Str("kind", string(kind)).Msg(message)
	default:
		n.logger.Info().Str("kind", string(kind)).Msg(message)
	}
}

// Event is one recorded notification.
type Event struct {
	Kind    Kind
	Message string
}

// Recorder captures notifications for inspection in tests and for replay
// after a live display shuts down.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements Notifier.
func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: kind, Message: message})
}

// Events returns a copy of all recorded notifications in delivery order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Replay delivers every recorded notification to sink in recorded order.
// Used after a live display shuts down so notifications raised while (or
// before) it was on screen still reach the user.
func (r *Recorder) Replay(sink Notifier) {
	for _, e := range r.Events() {
		sink.Notify(e.Kind, e.Message)
	}
}

// Count returns the number of recorded notifications of the given kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Multi fans one notification out to several sinks.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(kind Kind, message string) {
	for _, n := range m {
		n.Notify(kind, message)
	}
}
