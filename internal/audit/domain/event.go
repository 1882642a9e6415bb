package domain

import "time"

// Actions recorded for the OTP login flow.
const (
	ActionOTPRequest   = "OTP_REQUEST"
	ActionOTPSent      = "OTP_SENT"
	ActionLoginAttempt = "LOGIN_ATTEMPT"
	ActionLoginSuccess = "LOGIN_SUCCESS"
)

// Outcomes.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailed  = "FAILED"
)

// Event represents one audit event. Append-only; never mutated after creation.
type Event struct {
	ID        string
	Action    string
	Identity  string
	IP        string
	UserAgent string
	Outcome   string
	Detail    string
	CreatedAt time.Time
}

// Entry is one parsed line of the audit log.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}
