package service

import (
	"net/mail"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NormalizeEmail trims and lowercases raw and checks it is a bare email address (no display name).
// Returns ErrInvalidIdentity otherwise.
func NormalizeEmail(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if err := validate.Var(s, "required,email"); err != nil {
		return "", ErrInvalidIdentity
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return "", ErrInvalidIdentity
	}
	return s, nil
}

// NormalizeLookup returns the store key for raw. Unparsable input falls back to trim and lowercase,
// which can never match an issued challenge.
func NormalizeLookup(raw string) string {
	if s, err := NormalizeEmail(raw); err == nil {
		return s
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
