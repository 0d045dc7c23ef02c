package transfer

import "errors"

// Every error returned by an Engine pipeline wraps exactly one of the
// sentinels below together with its underlying cause.
var (
	// ErrTransport indicates a transport operation failed (connectivity,
	// authentication, rate limiting or remote rejection).
	ErrTransport = errors.New("transfer: transport failure")

	// ErrIntegrity indicates a payload failed decryption, decompression or
	// digest verification.
	ErrIntegrity = errors.New("transfer: integrity failure")

	// ErrCapacity indicates a part exceeded a hard limit of the remote side.
	ErrCapacity = errors.New("transfer: capacity exceeded")

	// ErrNotFound indicates an address refers to messages or media that do
	// not exist.
	ErrNotFound = errors.New("transfer: not found")

	// ErrInput indicates the payload source could not be read.
	ErrInput = errors.New("transfer: reading payload failed")

	// ErrNoAddress indicates a download was requested without message ids.
	ErrNoAddress = errors.New("transfer: address has no message ids")

	// ErrClosed indicates the engine has been closed.
	ErrClosed = errors.New("transfer: engine closed")
)
