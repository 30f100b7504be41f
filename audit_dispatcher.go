package contactguard

import (
	"context"
	"sync"
)

// auditDispatcher keeps sink delivery off the request path: Emit hands
// the event to a buffered channel and one background goroutine drives
// the sink. Closing the channel doubles as the drain signal, so Close
// returns only after every queued event has been delivered.
type auditDispatcher struct {
	sink       AuditSink
	events     chan AuditEvent
	dropIfFull bool
	onDrop     func()

	mu     sync.Mutex
	closed bool
	done   sync.WaitGroup
}

// newAuditDispatcher starts the delivery goroutine. onDrop is invoked
// once per event discarded by a saturated buffer; the engine points it
// at its metrics.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink, onDrop func()) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if onDrop == nil {
		onDrop = func() {}
	}

	d := &auditDispatcher{
		sink:       sink,
		events:     make(chan AuditEvent, cfg.BufferSize),
		dropIfFull: cfg.DropIfFull,
		onDrop:     onDrop,
	}

	d.done.Add(1)
	go func() {
		defer d.done.Done()
		for event := range d.events {
			d.sink.Emit(context.Background(), event)
		}
	}()

	return d
}

// Emit queues one event. With DropIfFull set a saturated buffer costs
// the event, not the request; otherwise the send blocks until the
// buffer has room or ctx ends.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}

	// The lock pairs every send with the closed check, so no send can
	// race the channel close in Close.
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.onDrop()
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- event:
	case <-ctx.Done():
	}
}

// Close stops intake, drains the buffer through the sink, and returns.
// Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	d.done.Wait()
}
