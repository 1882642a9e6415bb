package security

import (
	"crypto/rand"
	"errors"
)

// DefaultTokenLength is the number of characters in an issued session token.
const DefaultTokenLength = 32

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Largest multiple of len(tokenAlphabet) that fits in a byte; bytes at or above it are discarded.
const tokenRejectAbove = 256 - 256%len(tokenAlphabet)

// ErrInvalidTokenLength is returned by NewTokenIssuer for a non-positive length.
var ErrInvalidTokenLength = errors.New("security: token length must be positive")

// TokenIssuer mints opaque session tokens. Stateless; issued tokens are not tracked.
type TokenIssuer struct {
	length int
}

// NewTokenIssuer returns a TokenIssuer producing tokens of the given length.
func NewTokenIssuer(length int) (*TokenIssuer, error) {
	if length <= 0 {
		return nil, ErrInvalidTokenLength
	}
	return &TokenIssuer{length: length}, nil
}

// Issue returns a fresh token for identity, uniformly random over [A-Za-z0-9].
// identity is not encoded in the token.
func (t *TokenIssuer) Issue(identity string) (string, error) {
	out := make([]byte, 0, t.length)
	buf := make([]byte, t.length)
	for len(out) < t.length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= tokenRejectAbove {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == t.length {
				break
			}
		}
	}
	return string(out), nil
}
