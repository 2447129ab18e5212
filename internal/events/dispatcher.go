package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher relays session events to one listener from a single goroutine.
//
// Every accepted event is numbered with the next Seq, so a listener sees a gap
// where events were dropped. A Restored or Discarded event equal to the last
// accepted one restates a session the listener already knows about and is
// coalesced instead of queued.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup

	// mu orders numbering and coalescing with enqueueing.
	mu   sync.Mutex
	seq  uint64
	last Event

	dropped   atomic.Uint64
	coalesced atomic.Uint64
	panics    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. A nil sink yields a nil Dispatcher,
// whose methods are all no-ops.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if sink == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		done:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

// deliver hands one event to the listener. A panicking listener loses that event
// only.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if recover() != nil {
			d.panics.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit numbers and queues event. With DropIfFull a full buffer drops the event and
// counts it; otherwise Emit blocks until there is room, ctx ends, or the
// dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.restatesLast(event) {
		d.coalesced.Add(1)
		return
	}
	d.seq++
	event.Seq = d.seq
	d.last = event

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// restatesLast must be called with d.mu held.
func (d *Dispatcher) restatesLast(event Event) bool {
	if d.seq == 0 || !event.Kind.restatesSession() {
		return false
	}
	return d.last.Kind == event.Kind && d.last.Email == event.Email && d.last.Reason == event.Reason
}

// Close drains queued events and stops the delivery goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many numbered events never reached the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Coalesced returns how many repeated Restored or Discarded events were folded
// into the previous one.
func (d *Dispatcher) Coalesced() uint64 {
	if d == nil {
		return 0
	}
	return d.coalesced.Load()
}

// ListenerPanics returns how many deliveries ended in a recovered listener panic.
func (d *Dispatcher) ListenerPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panics.Load()
}
