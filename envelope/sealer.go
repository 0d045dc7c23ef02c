package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	// Version is the current sealed payload format.
	Version byte = 1

	// SaltLen is the per-payload HKDF salt length.
	SaltLen = 16

	// NonceLen is the length of the AES-GCM nonce in bytes.
	NonceLen = 12

	// GCMTagLen is the length of the GCM authentication tag in bytes.
	GCMTagLen = 16

	// HeaderLen is version + salt + nonce.
	HeaderLen = 1 + SaltLen + NonceLen

	// Overhead is the number of bytes Seal adds to a plaintext.
	Overhead = HeaderLen + GCMTagLen
)

// Sealer encrypts and authenticates whole payloads under one master key.
//
// A nil *Sealer is valid and means encryption is disabled: Seal and Open
// return their input unchanged.
type Sealer struct {
	master []byte
}

// NewSealer creates a Sealer from a 32-byte master key.
func NewSealer(master []byte) (*Sealer, error) {
	if len(master) != KeyLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(master))
	}
	k := make([]byte, KeyLen)
	copy(k, master)
	return &Sealer{master: k}, nil
}

// NewSealerFromString parses key material with ParseKey and creates a Sealer.
// An empty string yields a nil Sealer and no error.
func NewSealerFromString(s string) (*Sealer, error) {
	if s == "" {
		return nil, nil
	}
	key, err := ParseKey(s)
	if err != nil {
		return nil, err
	}
	return NewSealer(key)
}

// Enabled reports whether s encrypts.
func (s *Sealer) Enabled() bool {
	return s != nil
}

// Seal encrypts plaintext.
// Output format: version(1B) || salt(16B) || nonce(12B) || AES-256-GCM(plaintext) || tag(16B).
// The header is bound as additional authenticated data.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s == nil {
		return plaintext, nil
	}

	header := make([]byte, HeaderLen, HeaderLen+len(plaintext)+GCMTagLen)
	header[0] = Version
	if _, err := rand.Read(header[1:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRandomFailure, err)
	}
	salt := header[1 : 1+SaltLen]
	nonce := header[1+SaltLen:]

	gcm, err := s.gcm(salt)
	if err != nil {
		return nil, err
	}

	return gcm.Seal(header, nonce, plaintext, header), nil
}

// Open authenticates and decrypts a payload produced by Seal. Every failure
// wraps ErrIntegrity.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if s == nil {
		return sealed, nil
	}

	if len(sealed) < Overhead {
		return nil, fmt.Errorf("%w: payload too short (%d bytes)", ErrIntegrity, len(sealed))
	}
	if sealed[0] != Version {
		return nil, fmt.Errorf("%w: unknown version %d", ErrIntegrity, sealed[0])
	}

	header := sealed[:HeaderLen]
	salt := header[1 : 1+SaltLen]
	nonce := header[1+SaltLen:]

	gcm, err := s.gcm(salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}

	plaintext, err := gcm.Open(nil, nonce, sealed[HeaderLen:], header)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrIntegrity)
	}

	// Normalize nil to empty slice for consistency.
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

func (s *Sealer) gcm(salt []byte) (cipher.AEAD, error) {
	key, err := DerivePayloadKey(s.master, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: AES cipher creation failed: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: GCM creation failed: %w", err)
	}
	return gcm, nil
}
