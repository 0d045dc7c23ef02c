package storage

import "errors"

var (
	// ErrNotFound indicates no blob exists for the given key.
	ErrNotFound = errors.New("storage: content not found")

	// ErrInvalidKey indicates an empty spool key.
	ErrInvalidKey = errors.New("storage: key must not be empty")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrUnsupportedCompression indicates an unsupported compression scheme.
	ErrUnsupportedCompression = errors.New("storage: unsupported compression scheme")

	// ErrRecombinationHashMismatch indicates the joined parts do not hash to
	// the digest recorded at upload time.
	ErrRecombinationHashMismatch = errors.New("storage: recombination hash mismatch")

	// ErrDecompressedTooLarge indicates decompressed data exceeds the safety limit.
	ErrDecompressedTooLarge = errors.New("storage: decompressed data exceeds maximum size")

	// ErrInvalidChunkSize indicates the part ceiling is not a positive integer.
	ErrInvalidChunkSize = errors.New("storage: chunk size must be positive")
)
