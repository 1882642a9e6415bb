// Package handler serves the dev-only OTP lookup endpoint.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"connections-portal/backend/internal/devotp"
	otpservice "connections-portal/backend/internal/otp/service"
)

const devOTPNote = "DEV MODE ONLY"

// Handler serves GET /dev/otp. Only registered when dev OTP is enabled and not production.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a Handler that reads OTP from the given store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the dev routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/dev/otp", h.GetOTP)
}

// GetOTP returns the plain OTP for ?email= from the dev store. 404 if missing or expired.
func (h *Handler) GetOTP(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	otp, ok := h.store.Get(c.Request.Context(), otpservice.NormalizeLookup(email))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "OTP not found or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"otp": otp, "note": devOTPNote})
}
