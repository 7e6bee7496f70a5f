package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit drop instead of wait when the queue is full.
	DropIfFull bool
	// OnDrop, when set, is called synchronously for each dropped event. The
	// engine uses it to count drops in its metrics.
	OnDrop func(Event)
}

// Dispatcher hands events to a sink on a single goroutine, in emit order.
// Close closes the queue; the goroutine delivers what is left and exits.
type Dispatcher struct {
	sink    Sink
	queue   chan Event
	wait    bool
	onDrop  func(Event)
	dropped atomic.Uint64

	// mu guards closed and orders sends against close(queue).
	mu      sync.RWMutex
	closed  bool
	drained chan struct{}
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled; a nil *Dispatcher accepts and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Event, max(cfg.BufferSize, 1)),
		wait:    !cfg.DropIfFull,
		onDrop:  cfg.OnDrop,
		drained: make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.drained)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event. Events emitted after Close are ignored. A waiting
// dispatcher gives up when ctx is done; that is not counted as a drop.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if !d.wait {
		select {
		case d.queue <- event:
		default:
			d.drop(event)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop(event)
	}
}

// Close stops accepting events and returns once queued events reached the
// sink. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	<-d.drained
}

// Dropped returns how many events were dropped on a full queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
