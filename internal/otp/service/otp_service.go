// Package service implements the email OTP login lifecycle: issue, verify, expiry and lockout.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"connections-portal/backend/internal/audit"
	auditdomain "connections-portal/backend/internal/audit/domain"
	"connections-portal/backend/internal/mail"
	"connections-portal/backend/internal/otp"
	"connections-portal/backend/internal/otp/domain"
)

// Defaults applied by NewService for zero Config fields.
const (
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 3
	DefaultSendTimeout = 15 * time.Second
)

const meterName = "connections-portal/otp"

// TokenIssuer mints the session credential returned on successful verification.
type TokenIssuer interface {
	Issue(identity string) (string, error)
}

// Config holds OTP policy.
type Config struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
	SendTimeout time.Duration
}

// Result is returned by a successful VerifyChallenge.
type Result struct {
	Token    string
	Identity string
}

// Service runs the OTP lifecycle over a Store, serializing work per identity with a Locker.
type Service struct {
	store  otp.Store
	locker otp.Locker
	sender mail.Sender
	tokens TokenIssuer
	audit  audit.AuditLogger

	codeLength  int
	ttl         time.Duration
	maxAttempts int
	sendTimeout time.Duration
	nowF        func() time.Time

	issued        metric.Int64Counter
	verifications metric.Int64Counter
}

// NewService returns a Service. auditLogger may be nil.
func NewService(store otp.Store, locker otp.Locker, sender mail.Sender, tokens TokenIssuer, auditLogger audit.AuditLogger, cfg Config) *Service {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = otp.DefaultCodeLength
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	s := &Service{
		store:       store,
		locker:      locker,
		sender:      sender,
		tokens:      tokens,
		audit:       auditLogger,
		codeLength:  cfg.CodeLength,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		sendTimeout: cfg.SendTimeout,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
	meter := otel.Meter(meterName)
	var err error
	if s.issued, err = meter.Int64Counter("otp.challenges.issued",
		metric.WithDescription("OTP issuance requests by outcome")); err != nil {
		log.Printf("otp: issued counter: %v", err)
	}
	if s.verifications, err = meter.Int64Counter("otp.verifications",
		metric.WithDescription("OTP verification attempts by outcome")); err != nil {
		log.Printf("otp: verifications counter: %v", err)
	}
	return s
}

// IssueChallenge validates identity, stores a fresh challenge replacing any previous one, and delivers the code.
// On delivery failure the challenge stays stored and ErrDeliveryFailed is returned.
func (s *Service) IssueChallenge(ctx context.Context, rawIdentity string, origin domain.Origin) error {
	identity, err := NormalizeEmail(rawIdentity)
	if err != nil {
		s.logEvent(ctx, auditdomain.ActionOTPRequest, strings.TrimSpace(rawIdentity), auditdomain.OutcomeFailed, "Invalid email format")
		s.count(ctx, s.issued, "invalid_identity")
		return ErrInvalidIdentity
	}
	code, err := otp.GenerateCode(s.codeLength)
	if err != nil {
		s.logEvent(ctx, auditdomain.ActionOTPRequest, identity, auditdomain.OutcomeFailed, "Code generation failed")
		s.count(ctx, s.issued, "internal")
		return fmt.Errorf("%w: generate code: %v", ErrInternal, err)
	}

	now := s.nowF()
	unlock := s.locker.Lock(identity)
	s.store.Put(ctx, &domain.Challenge{
		Identity:  identity,
		CodeHash:  otp.HashCode(code),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
		Origin:    origin,
	})
	unlock()

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	err = s.sender.SendOTP(sendCtx, identity, code)
	cancel()
	if err != nil {
		log.Printf("otp: delivery to %s failed: %v", identity, err)
		s.logEvent(ctx, auditdomain.ActionOTPRequest, identity, auditdomain.OutcomeFailed, "Failed to send OTP email")
		s.count(ctx, s.issued, "delivery_failed")
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	s.logEvent(ctx, auditdomain.ActionOTPSent, identity, auditdomain.OutcomeSuccess, "OTP sent successfully")
	s.count(ctx, s.issued, "sent")
	return nil
}

// VerifyChallenge checks code against the stored challenge for identity.
// Order: missing, expired, locked out, then code comparison. A mismatch counts an attempt and keeps the challenge;
// success consumes it and returns a fresh session token.
func (s *Service) VerifyChallenge(ctx context.Context, rawIdentity, code string, origin domain.Origin) (*Result, error) {
	identity := NormalizeLookup(rawIdentity)
	if identity == "" || code == "" {
		s.logEvent(ctx, auditdomain.ActionLoginAttempt, identity, auditdomain.OutcomeFailed, "Missing email or OTP")
		s.count(ctx, s.verifications, "missing_input")
		return nil, ErrMissingInput
	}

	unlock := s.locker.Lock(identity)
	res, v := s.verifyLocked(ctx, identity, code)
	unlock()

	action, outcome := auditdomain.ActionLoginAttempt, auditdomain.OutcomeFailed
	if v.err == nil {
		action, outcome = auditdomain.ActionLoginSuccess, auditdomain.OutcomeSuccess
	}
	s.logEvent(ctx, action, identity, outcome, v.detail)
	s.count(ctx, s.verifications, v.metric)
	if v.err != nil {
		return nil, v.err
	}
	return res, nil
}

type verdict struct {
	err    error
	detail string
	metric string
}

// verifyLocked must be called with the identity lock held.
func (s *Service) verifyLocked(ctx context.Context, identity, code string) (*Result, verdict) {
	c, ok := s.store.Get(ctx, identity)
	if !ok {
		return nil, verdict{ErrNotFound, "No OTP found for email", "not_found"}
	}
	if c.Expired(s.nowF()) {
		s.store.Delete(ctx, identity)
		return nil, verdict{ErrExpired, "OTP expired", "expired"}
	}
	if c.Attempts >= s.maxAttempts {
		s.store.Delete(ctx, identity)
		return nil, verdict{ErrLockedOut, "Too many failed attempts", "locked_out"}
	}
	if !otp.CodeEqual(code, c.CodeHash) {
		attempts, _ := s.store.IncrementAttempts(ctx, identity)
		return nil, verdict{ErrMismatch, fmt.Sprintf("Invalid OTP (attempt %d of %d)", attempts, s.maxAttempts), "mismatch"}
	}
	s.store.Delete(ctx, identity)
	token, err := s.tokens.Issue(identity)
	if err != nil {
		log.Printf("otp: token issue for %s failed: %v", identity, err)
		return nil, verdict{fmt.Errorf("%w: issue token: %v", ErrInternal, err), "Token issuance failed", "internal"}
	}
	return &Result{Token: token, Identity: identity}, verdict{nil, "Login successful", "success"}
}

func (s *Service) logEvent(ctx context.Context, action, identity, outcome, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, action, identity, outcome, detail)
}

func (s *Service) count(ctx context.Context, c metric.Int64Counter, outcome string) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
