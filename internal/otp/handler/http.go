// Package handler serves the email OTP login endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"connections-portal/backend/internal/otp/domain"
	"connections-portal/backend/internal/otp/service"
)

// OTPService is the subset of the OTP service used by the handler.
type OTPService interface {
	IssueChallenge(ctx context.Context, identity string, origin domain.Origin) error
	VerifyChallenge(ctx context.Context, identity, code string, origin domain.Origin) (*service.Result, error)
}

// Handler serves POST /api/send-otp and POST /api/verify-otp.
type Handler struct {
	svc OTPService
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc OTPService) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the OTP routes on r. sendGuards run before send-otp (e.g. rate limiting).
func (h *Handler) Register(r gin.IRouter, sendGuards ...gin.HandlerFunc) {
	r.POST("/api/send-otp", append(sendGuards, h.SendOTP)...)
	r.POST("/api/verify-otp", h.VerifyOTP)
}

type sendRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// SendOTP issues a code for the posted email. A malformed body is treated as a missing email.
func (h *Handler) SendOTP(c *gin.Context) {
	var req sendRequest
	_ = c.ShouldBindJSON(&req)
	err := h.svc.IssueChallenge(c.Request.Context(), req.Email, originOf(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidIdentity) && req.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
			return
		}
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP sent successfully to your email"})
}

// VerifyOTP checks the posted code and returns a session token on success.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	_ = c.ShouldBindJSON(&req)
	res, err := h.svc.VerifyChallenge(c.Request.Context(), req.Email, req.OTP, originOf(c))
	if err != nil {
		status, msg := mapError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   res.Token,
		"email":   res.Identity,
	})
}

func originOf(c *gin.Context) domain.Origin {
	return domain.Origin{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// mapError maps service errors to HTTP status and a client message.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidIdentity):
		return http.StatusBadRequest, "Invalid email format"
	case errors.Is(err, service.ErrMissingInput):
		return http.StatusBadRequest, "Email and OTP are required"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusBadRequest, "OTP not found or expired. Please request a new OTP."
	case errors.Is(err, service.ErrExpired):
		return http.StatusBadRequest, "OTP has expired. Please request a new OTP."
	case errors.Is(err, service.ErrLockedOut):
		return http.StatusBadRequest, "Too many failed attempts. Please request a new OTP."
	case errors.Is(err, service.ErrMismatch):
		return http.StatusBadRequest, "Invalid OTP"
	case errors.Is(err, service.ErrDeliveryFailed):
		return http.StatusInternalServerError, "Failed to send OTP. Please try again."
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
