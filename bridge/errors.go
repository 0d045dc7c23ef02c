package bridge

import "errors"

var (
	// ErrClosed indicates the bridge no longer accepts operations.
	ErrClosed = errors.New("bridge: closed")

	// ErrOpPanicked indicates an operation panicked on the worker.
	ErrOpPanicked = errors.New("bridge: operation panicked")

	// ErrNilOp indicates a nil operation was submitted.
	ErrNilOp = errors.New("bridge: operation is nil")
)
