package envelope

import "errors"

var (
	// ErrEmptyKey indicates no key material was supplied.
	ErrEmptyKey = errors.New("envelope: key is empty")

	// ErrInvalidKeyLength indicates a master key that is not 32 bytes.
	ErrInvalidKeyLength = errors.New("envelope: master key must be 32 bytes")

	// ErrIntegrity indicates a sealed payload failed structural, version or
	// authentication checks. Never distinguishes the cause to callers.
	ErrIntegrity = errors.New("envelope: integrity check failed")

	// ErrHKDFFailure indicates HKDF key derivation failed.
	ErrHKDFFailure = errors.New("envelope: HKDF key derivation failed")

	// ErrRandomFailure indicates the system random source failed.
	ErrRandomFailure = errors.New("envelope: random source failure")
)
