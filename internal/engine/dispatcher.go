package engine

import (
	"context"

	"SynthVault/internal/event"
)

type submission struct {
	op    event.Operation
	reply chan submissionResult
}

type submissionResult struct {
	receipt *Receipt
	err     error
}

// Dispatcher imposes the global total order: every operation, whether from
// the HTTP API or the price feed, passes through one goroutine before it
// reaches Process. This keeps the reentrancy guard free of false positives
// from concurrent submitters.
type Dispatcher struct {
	engine      *Engine
	submissions chan submission
}

func NewDispatcher(e *Engine, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		engine:      e,
		submissions: make(chan submission, buffer),
	}
}

// Run owns the engine until the context is cancelled. Pending submitters are
// answered with the context error on shutdown.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sub := <-d.submissions:
			receipt, err := d.engine.Process(sub.op)
			sub.reply <- submissionResult{receipt: receipt, err: err}
		}
	}
}

// Submit enqueues an operation and waits for its outcome.
func (d *Dispatcher) Submit(ctx context.Context, op event.Operation) (*Receipt, error) {
	sub := submission{op: op, reply: make(chan submissionResult, 1)}

	select {
	case d.submissions <- sub:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-sub.reply:
		return res.receipt, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
