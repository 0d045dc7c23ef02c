// Package envelope implements the optional payload encryption layer.
//
// Every sealed payload carries its own random salt, from which a one-time
// AES-256 key is derived:
//
//	aes_key = HKDF-SHA256(master, salt, "msgstore-payload")
//
// The master key is either 32 raw bytes supplied as base64, or a passphrase
// stretched with argon2id.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// HKDFInfo is the info string bound into every payload key.
	HKDFInfo = "msgstore-payload"

	// KeyLen is the master and derived key length (AES-256).
	KeyLen = 32

	// Argon2id parameters for passphrase keys.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4
)

// passphraseSalt is fixed so the same passphrase yields the same master key
// on every host. Per-payload randomness comes from the HKDF salt.
var passphraseSalt = []byte("msgstore/passphrase/v1")

// ParseKey turns operator-supplied key material into a 32-byte master key.
//
// A string that decodes as base64 (standard or URL alphabet, with or without
// padding) to exactly 32 bytes is used directly. Anything else is treated as
// a passphrase.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyKey
	}

	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawURLEncoding,
		base64.RawStdEncoding,
	} {
		if key, err := enc.DecodeString(s); err == nil && len(key) == KeyLen {
			return key, nil
		}
	}

	return DerivePassphraseKey(s), nil
}

// DerivePassphraseKey stretches a passphrase into a master key with argon2id.
func DerivePassphraseKey(passphrase string) []byte {
	return argon2.IDKey(
		[]byte(passphrase),
		passphraseSalt,
		Argon2Time,
		Argon2Memory,
		Argon2Parallelism,
		KeyLen,
	)
}

// DerivePayloadKey derives the AES-256 key for one payload.
//
// The HKDF parameters are:
//   - IKM  = master
//   - Salt = salt (random, stored in the payload header)
//   - Info = "msgstore-payload"
//   - Len  = 32
func DerivePayloadKey(master, salt []byte) ([]byte, error) {
	if len(master) != KeyLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(master))
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: salt is empty", ErrHKDFFailure)
	}

	r := hkdf.New(sha256.New, master, salt, []byte(HKDFInfo))
	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHKDFFailure, err)
	}
	return key, nil
}

// GenerateKey returns a fresh random master key encoded as base64url, ready
// to paste into ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	key := make([]byte, KeyLen)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRandomFailure, err)
	}
	return base64.URLEncoding.EncodeToString(key), nil
}
