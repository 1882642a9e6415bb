package domain

import "time"

// Origin describes where a request came from. Kept for audit correlation only.
type Origin struct {
	IP        string
	UserAgent string
}

// Challenge represents one outstanding email OTP for an identity (held in the in-memory OTP store).
type Challenge struct {
	Identity  string
	CodeHash  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Attempts  int
	Origin    Origin
}

// Expired reports whether now is past the challenge's expiry.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
