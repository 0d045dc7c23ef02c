package transport

import "errors"

var (
	// ErrNotConnected indicates an operation was attempted before Connect.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrAuthFailed indicates the session credentials were rejected.
	ErrAuthFailed = errors.New("transport: authentication failed")

	// ErrConnectionFailed indicates the remote side could not be reached.
	ErrConnectionFailed = errors.New("transport: connection failed")

	// ErrRateLimited indicates the remote side asked the client to back off.
	ErrRateLimited = errors.New("transport: rate limited")

	// ErrPartTooLarge indicates a part exceeds the remote part-size ceiling.
	ErrPartTooLarge = errors.New("transport: part too large")

	// ErrRejected indicates the remote side refused a well-formed request.
	ErrRejected = errors.New("transport: request rejected")

	// ErrMessageNotFound indicates a message or its media does not exist.
	ErrMessageNotFound = errors.New("transport: message not found")

	// ErrTargetNotFound indicates a channel link does not resolve.
	ErrTargetNotFound = errors.New("transport: target not found")

	// ErrNoMedia indicates a message carries no document.
	ErrNoMedia = errors.New("transport: message has no media")

	// ErrInvalidResponse indicates the remote side returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("transport: invalid response")

	// ErrInvalidLink indicates an empty or malformed channel link.
	ErrInvalidLink = errors.New("transport: invalid channel link")

	// ErrDNSLookupFailed indicates a DNS TXT lookup for a channel link failed.
	ErrDNSLookupFailed = errors.New("transport: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the DNS response was not DNSSEC-validated.
	ErrDNSSECValidationFailed = errors.New("transport: DNSSEC validation failed")
)
