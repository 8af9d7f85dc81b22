package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the caller when the buffer is full.
	DropIfFull bool
	// Logger reports sinks that panic. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Dispatcher moves events from request goroutines to a single sink
// goroutine. Emit never waits on the sink itself.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	logger     *zap.Logger

	// mu guards closed and the send side of queue. Emit holds it shared,
	// Close exclusively, so the queue is never sent to after it is closed.
	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   sync.WaitGroup

	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled; every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		logger:     logger,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
	}
	d.done.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.done.Done()
	for event := range d.queue {
		if d.deliver(event) {
			d.delivered.Add(1)
		} else {
			d.failed.Add(1)
		}
	}
}

func (d *Dispatcher) deliver(event Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit sink panicked",
				zap.String("event_type", event.EventType),
				zap.Any("panic", r),
			)
			ok = false
		}
	}()
	d.sink.Emit(context.Background(), event)
	return true
}

// Emit queues event, filling Timestamp when zero. With DropIfFull a full
// queue drops the event; otherwise Emit waits for room or ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events, then waits until every queued event has
// reached the sink. Safe to call more than once.
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
	d.done.Wait()
}

// Dropped returns how many events were discarded before reaching the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns how many events reached the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

// Failed returns how many events were lost to a panicking sink.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
