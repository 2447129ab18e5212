package events

import (
	"context"
	"time"
)

// Kind names a session transition.
type Kind string

const (
	// KindSignedIn follows a successful OTP verification and Token Store write.
	KindSignedIn Kind = "signed_in"
	// KindSignedOut follows an explicit logout.
	KindSignedOut Kind = "signed_out"
	// KindRestored follows a bootstrap that found a valid stored session.
	KindRestored Kind = "restored"
	// KindDiscarded follows a bootstrap that removed an expired or malformed session.
	KindDiscarded Kind = "discarded"
)

// restatesSession reports whether k reports what storage already held rather than
// a change the user made. Bootstrap may run any number of times.
func (k Kind) restatesSession() bool {
	return k == KindRestored || k == KindDiscarded
}

// Event describes one change of the session slot. Seq is assigned by the
// Dispatcher and increases by one per accepted event.
type Event struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Email     string    `json:"email,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Sink receives dispatched events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
