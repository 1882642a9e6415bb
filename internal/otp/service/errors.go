package service

import "errors"

// Sentinel errors for the OTP service; the HTTP handler maps them to status codes.
var (
	ErrInvalidIdentity = errors.New("invalid email address")
	ErrMissingInput    = errors.New("email and OTP are required")
	ErrNotFound        = errors.New("OTP not found or already used")
	ErrExpired         = errors.New("OTP has expired")
	ErrLockedOut       = errors.New("too many failed attempts")
	ErrMismatch        = errors.New("invalid OTP")
	ErrDeliveryFailed  = errors.New("failed to send OTP")
	ErrInternal        = errors.New("internal error")
)
