package mirror

import (
	"context"
	"log/slog"
	"sync"

	"sentechain/core/events"
	"sentechain/observability"
)

// Applier is the write side of the mirror.
type Applier interface {
	Apply(ctx context.Context, rec events.Record) error
}

// Emitter feeds committed records to an Applier off the sequencer's hot
// path. Emit never blocks: when the queue is full the record is dropped and
// counted.
type Emitter struct {
	store   Applier
	queue   chan events.Record
	logger  *slog.Logger
	metrics *observability.MirrorMetrics

	startOnce sync.Once
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewEmitter builds an emitter with a queue of size capacity.
func NewEmitter(store Applier, capacity int, logger *slog.Logger) *Emitter {
	if capacity <= 0 {
		capacity = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		store:   store,
		queue:   make(chan events.Record, capacity),
		logger:  logger.With("component", "mirror"),
		metrics: observability.Mirror(),
		done:    make(chan struct{}),
	}
}

// Emit implements events.Emitter.
func (e *Emitter) Emit(evt events.Event) {
	rec, ok := evt.(events.Record)
	if !ok {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- rec:
		e.metrics.SetDepth(len(e.queue))
	default:
		e.metrics.RecordDropped()
		e.logger.Warn("mirror queue full, dropping record", "height", rec.Height, "index", rec.Index, "type", rec.EventType())
	}
}

// Start launches the apply loop. It returns immediately. Cancelling ctx does
// not abort applies; the loop runs until Close drains the queue.
func (e *Emitter) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		go e.run(context.WithoutCancel(ctx))
	})
}

func (e *Emitter) run(ctx context.Context) {
	defer close(e.done)
	for rec := range e.queue {
		err := e.store.Apply(ctx, rec)
		e.metrics.RecordApplied(err)
		e.metrics.SetDepth(len(e.queue))
		if err != nil {
			e.logger.Error("mirror apply failed", "height", rec.Height, "index", rec.Index, "type", rec.EventType(), "error", err)
		}
	}
}

// Close stops accepting records and waits for the queue to drain or ctx to
// expire.
func (e *Emitter) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.queue)
		e.mu.Unlock()
	})
	e.Start(ctx)
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
