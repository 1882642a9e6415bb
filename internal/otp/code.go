// Package otp holds the email one-time code primitives and the process-wide challenge store.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// DefaultCodeLength is the number of digits in an issued code when none is configured.
const DefaultCodeLength = 6

// ErrInvalidCodeLength is returned by GenerateCode for a non-positive length.
var ErrInvalidCodeLength = errors.New("otp: code length must be positive")

// GenerateCode returns a numeric code of the given length (e.g. "042517").
// Uses crypto/rand; bytes >= 250 are discarded so every digit is uniform.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidCodeLength
	}
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// HashCode returns a SHA-256 hash of the code string, hex-encoded.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual performs constant-time comparison of the provided code's hash with the stored hash.
func CodeEqual(providedCode, storedHash string) bool {
	if providedCode == "" {
		return false
	}
	providedHash := HashCode(providedCode)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
