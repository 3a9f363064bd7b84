package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mochiquin/safehome/pkg/apperr"
)

const minIterations = 100000

// Config carries the operator-provided key material for the PII envelope.
// Secret and Salt come from deployment configuration; the salt must be
// random per deployment, never a constant baked into the source.
type Config struct {
	Secret     string
	Salt       string
	Iterations int
}

// Envelope seals and opens opaque PII strings (addresses, phone numbers)
// with a key derived once at construction. The derived key stays inside
// the struct and is never logged or exported.
type Envelope struct {
	aead cipher.AEAD
}

// NewEnvelope derives a 256-bit key via PBKDF2-SHA256 and prepares an
// AES-GCM AEAD. Fails when the secret or salt is missing so the process
// refuses to start without proper key material.
func NewEnvelope(cfg Config) (*Envelope, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("envelope secret is required")
	}
	if cfg.Salt == "" {
		return nil, fmt.Errorf("envelope salt is required")
	}

	iterations := cfg.Iterations
	if iterations < minIterations {
		iterations = minIterations
	}

	key := pbkdf2.Key([]byte(cfg.Secret), []byte(cfg.Salt), iterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &Envelope{aead: aead}, nil
}

// Seal encrypts plaintext into a self-contained base64url string:
// nonce || ciphertext || tag. A fresh random nonce per call guarantees
// that identical plaintexts produce different ciphertexts.
func (e *Envelope) Seal(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := crand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a string produced by Seal. Malformed, truncated, or
// tampered input fails with apperr.ErrDecryption; the caller must never
// downgrade that into empty or plaintext-looking data.
func (e *Envelope) Open(ciphertext string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", apperr.ErrDecryption)
	}

	nonceSize := e.aead.NonceSize()
	if len(raw) < nonceSize+e.aead.Overhead() {
		return "", fmt.Errorf("ciphertext too short: %w", apperr.ErrDecryption)
	}

	plaintext, err := e.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", apperr.ErrDecryption)
	}

	return string(plaintext), nil
}
