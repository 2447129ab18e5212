package tripauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/travelplanner/tripauth/internal/events"
)

// SessionEvent describes one change of the session slot.
type SessionEvent = events.Event

// SessionEventKind names a session transition.
type SessionEventKind = events.Kind

const (
	EventSignedIn  = events.KindSignedIn
	EventSignedOut = events.KindSignedOut
	EventRestored  = events.KindRestored
	EventDiscarded = events.KindDiscarded
)

// SessionListener receives session events on a dedicated goroutine, in order.
type SessionListener = events.Sink

// SessionListenerFunc adapts a function to SessionListener.
type SessionListenerFunc = events.SinkFunc

// NewChannelListener returns a listener that buffers events in a channel.
func NewChannelListener(buffer int) *events.ChannelSink {
	return events.NewChannelSink(buffer)
}

// JSONWriterListener writes one JSON document per event.
type JSONWriterListener struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterListener(w io.Writer) *JSONWriterListener {
	return &JSONWriterListener{writer: w}
}

func (l *JSONWriterListener) Emit(_ context.Context, event SessionEvent) {
	if l == nil || l.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, _ = l.writer.Write(data)
	_, _ = l.writer.Write([]byte("\n"))
}
