// Package bridge serializes operations onto a single long-lived worker.
//
// The remote transport client is not safe for concurrent use, so every call
// into it is funnelled through one goroutine. Callers on any goroutine submit
// an operation and block until the worker has run it.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultQueueLen is the number of operations that may wait for the worker.
const DefaultQueueLen = 64

// Op is a unit of work executed on the worker goroutine.
type Op func(ctx context.Context) (any, error)

// Stats holds operation counters.
type Stats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
}

type request struct {
	ctx   context.Context
	op    Op
	reply chan result
}

type result struct {
	val any
	err error
}

// Bridge owns one worker goroutine that runs submitted operations one at a
// time, in the order they were enqueued.
type Bridge struct {
	queue chan request
	log   zerolog.Logger

	mu     sync.RWMutex // guards closed against concurrent enqueues
	closed bool
	once   sync.Once
	done   chan struct{}

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// New starts a bridge with its worker. queueLen <= 0 uses DefaultQueueLen.
func New(logger zerolog.Logger, queueLen int) *Bridge {
	if queueLen <= 0 {
		queueLen = DefaultQueueLen
	}
	b := &Bridge{
		queue: make(chan request, queueLen),
		log:   logger.With().Str("component", "bridge").Logger(),
		done:  make(chan struct{}),
	}
	go b.run()
	return b
}

// Submit enqueues op and blocks until it has run, returning its result.
//
// ctx bounds only the wait for a queue slot. Once enqueued, the operation
// always runs to completion and Submit waits for it; ctx is passed through so
// the operation itself may observe cancellation.
func (b *Bridge) Submit(ctx context.Context, op Op) (any, error) {
	if op == nil {
		return nil, ErrNilOp
	}

	req := request{ctx: ctx, op: op, reply: make(chan result, 1)}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrClosed
	}
	select {
	case b.queue <- req:
		b.submitted.Add(1)
	case <-ctx.Done():
		b.mu.RUnlock()
		return nil, ctx.Err()
	}
	b.mu.RUnlock()

	res := <-req.reply
	return res.val, res.err
}

// Call is a typed wrapper around Submit.
func Call[T any](ctx context.Context, b *Bridge, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, ErrNilOp
	}
	v, err := b.Submit(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if t, ok := v.(T); ok {
			return t, err
		}
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Do runs an operation that only returns an error.
func (b *Bridge) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilOp
	}
	_, err := b.Submit(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// Close stops accepting operations, runs everything already queued, and
// waits for the worker to exit. Safe to call more than once.
func (b *Bridge) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()
	})
	<-b.done
	return nil
}

// Stats returns a snapshot of the operation counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Submitted: b.submitted.Load(),
		Completed: b.completed.Load(),
		Failed:    b.failed.Load(),
	}
}

func (b *Bridge) run() {
	defer close(b.done)
	for req := range b.queue {
		val, err := b.exec(req)
		b.completed.Add(1)
		if err != nil {
			b.failed.Add(1)
		}
		req.reply <- result{val: val, err: err}
	}
	b.log.Debug().Msg("worker stopped")
}

func (b *Bridge) exec(req request) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Msg("operation panicked")
			val = nil
			err = fmt.Errorf("%w: %v", ErrOpPanicked, r)
		}
	}()
	return req.op(req.ctx)
}
