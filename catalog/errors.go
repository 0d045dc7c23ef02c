package catalog

import "errors"

var (
	// ErrNotFound indicates no record exists for the given id.
	ErrNotFound = errors.New("catalog: record not found")

	// ErrInvalidRecord indicates a record without a name or message ids.
	ErrInvalidRecord = errors.New("catalog: invalid record")

	// ErrUnknownBackend indicates an unsupported catalog backend name.
	ErrUnknownBackend = errors.New("catalog: unknown backend")
)
