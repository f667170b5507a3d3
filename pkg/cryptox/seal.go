package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Configuration for Argon2id key derivation.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = chacha20poly1305.KeySize
	saltLength  = 16
)

const sealedPrefix = "v1."

var (
	// ErrNotSealed is returned by Open for values that were not produced by Seal.
	ErrNotSealed = errors.New("cryptox: value is not sealed")
	// ErrOpen is returned when a sealed value fails authentication, usually
	// because the passphrase changed.
	ErrOpen = errors.New("cryptox: cannot open sealed value")
)

// Sealer encrypts small secrets (session tokens) at rest under a passphrase.
// Every value gets its own salt, so the same secret never seals to the same
// output twice.
//
// A nil *Sealer is valid and stores values in the clear.
type Sealer struct {
	passphrase []byte
}

// NewSealer returns a Sealer for passphrase, or nil when passphrase is empty.
func NewSealer(passphrase string) *Sealer {
	if passphrase == "" {
		return nil
	}
	return &Sealer{passphrase: []byte(passphrase)}
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under an Argon2id key.
// Output format: "v1." + base64url([16-byte salt][24-byte nonce][ciphertext+tag]).
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil {
		return plaintext, nil
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, saltLength+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), salt)

	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if s == nil {
		if strings.HasPrefix(sealed, sealedPrefix) {
			return "", fmt.Errorf("%w: no passphrase configured", ErrOpen)
		}
		return sealed, nil
	}

	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrNotSealed
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotSealed, err)
	}

	if len(data) < saltLength+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", fmt.Errorf("%w: ciphertext too short", ErrNotSealed)
	}
	salt := data[:saltLength]
	nonce := data[saltLength : saltLength+chacha20poly1305.NonceSizeX]
	ciphertext := data[saltLength+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, salt)
	if err != nil {
		return "", ErrOpen
	}
	return string(plaintext), nil
}

func (s *Sealer) deriveKey(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, iterations, memory, parallelism, keyLength)
}
