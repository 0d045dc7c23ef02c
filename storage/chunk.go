package storage

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

const (
	// DefaultPartSize is the largest part the remote side accepts (2 GB).
	DefaultPartSize int64 = 2_000_000_000

	// PartSizeKB is the upload block size hint handed to the transport.
	PartSizeKB = 512
)

// Split splits payload into ordered parts of at most ceiling bytes.
//
// A payload no longer than ceiling is returned as a single part, including
// the zero-length payload, so every upload yields at least one part. Parts
// share the payload's backing array; callers must not modify payload while
// the parts are in use.
func Split(payload []byte, ceiling int64) ([][]byte, error) {
	if ceiling <= 0 {
		return nil, ErrInvalidChunkSize
	}
	n := int64(len(payload))
	if n <= ceiling {
		return [][]byte{payload}, nil
	}
	parts := make([][]byte, 0, PartCount(n, ceiling))
	for start := int64(0); start < n; start += ceiling {
		end := start + ceiling
		if end > n {
			end = n
		}
		parts = append(parts, payload[start:end:end])
	}
	return parts, nil
}

// PartCount returns the number of parts Split produces for a payload of n
// bytes: max(1, ceil(n/ceiling)).
func PartCount(n, ceiling int64) int {
	if n <= 0 {
		return 1
	}
	return int((n + ceiling - 1) / ceiling)
}

// Join concatenates parts in the given order with no separators.
func Join(parts [][]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// PartName names the i-th part of a logical file. The name only tells
// parts apart for humans browsing the channel; order is never recovered
// from it. The ".txt" suffix stops the remote side from treating a part as
// typed media and re-encoding it.
func PartName(name string, i int) string {
	return fmt.Sprintf("%s_part%d.txt", name, i)
}

// ComputeRecombinationHash computes SHA256(part0 || part1 || ...).
func ComputeRecombinationHash(parts [][]byte) []byte {
	h := sha256.New()
	for _, part := range parts {
		h.Write(part)
	}
	return h.Sum(nil)
}

// RecombineParts joins parts and verifies the recombination hash. A nil
// expectedHash skips verification.
func RecombineParts(parts [][]byte, expectedHash []byte) ([]byte, error) {
	joined := Join(parts)
	if expectedHash == nil {
		return joined, nil
	}
	actual := sha256.Sum256(joined)
	if !bytes.Equal(actual[:], expectedHash) {
		return nil, ErrRecombinationHashMismatch
	}
	return joined, nil
}
