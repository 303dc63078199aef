// Package bridge carries background-task events to the UI thread.
//
// The queue is unbounded on purpose: terminal task events must reach the UI
// exactly once and in order, so dropping under pressure is not an option.
// Depth is bounded in practice by the number of in-flight tasks plus change
// notices, which the coordinator's worker pool keeps small. A single pump
// goroutine preserves enqueue order end to end.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"driftline/pkg/drift"
)

// Sink receives delivered events in enqueue order. The TUI adapter forwards
// each event to the program as a message; Sink implementations must be safe
// to call from the pump goroutine.
type Sink func(drift.Event)

// Bridge is the single-consumer handoff between workers and the UI.
type Bridge struct {
	mu      sync.Mutex
	wake    *sync.Cond
	queue   []drift.Event
	closing bool
	done    chan struct{}

	sink   Sink
	logger *slog.Logger
}

// Option adjusts bridge construction.
type Option func(*Bridge)

// WithLogger configures the logger used for sink panic reports.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a bridge and starts its pump goroutine.
func New(sink Sink, options ...Option) (*Bridge, error) {
	if sink == nil {
		return nil, fmt.Errorf("new bridge: nil sink")
	}

	b := &Bridge{
		sink:   sink,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	b.wake = sync.NewCond(&b.mu)
	for _, option := range options {
		option(b)
	}

	go b.pump()

	return b, nil
}

// Notify enqueues one event. It never blocks: enqueueing is a slice append
// under the mutex, so producers holding their own locks may call it safely.
// After Close it fails with drift.ErrBridgeClosed.
func (b *Bridge) Notify(event drift.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closing {
		return fmt.Errorf("notify %s: %w", event.Kind, drift.ErrBridgeClosed)
	}
	b.queue = append(b.queue, event)
	b.wake.Signal()

	return nil
}

// Pending reports the current queue depth.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}

// Close stops accepting events, flushes everything already queued, and waits
// for the pump to exit. The context bounds the wait; on expiry the pump is
// left to finish in the background.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closing = true
	b.wake.Broadcast()
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close bridge: %w", ctx.Err())
	}
}

// pump delivers queued events one at a time until closed and drained.
func (b *Bridge) pump() {
	defer close(b.done)

	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closing {
			b.wake.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		event := b.queue[0]
		b.queue = b.queue[1:]
		if len(b.queue) == 0 {
			b.queue = nil
		}
		b.mu.Unlock()

		b.deliver(event)
	}
}

// deliver invokes the sink with panic containment so one bad delivery cannot
// stop the pump and strand queued events.
func (b *Bridge) deliver(event drift.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Error("event sink panicked",
				"kind", event.Kind,
				"event_id", event.ID,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
		}
	}()

	b.sink(event)
}
