package utils

import (
	crand "crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// GenerateConfirmationCode creates the 4-digit code a customer reads to
// the provider before a job starts. Uses crypto/rand so codes are not
// guessable from earlier codes.
func GenerateConfirmationCode() (string, error) {
	n, err := crand.Int(crand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// GenerateQRToken creates a URL-safe token with 256 bits of entropy for
// out-of-band payment confirmation.
func GenerateQRToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("generate qr token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
