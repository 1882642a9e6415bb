// Package handler serves the readiness endpoint.
package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 2 * time.Second

// Pinger checks a backing store (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the in-process policy engine (e.g. the assessment OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves GET /healthz.
type Handler struct {
	pinger  Pinger
	checker PolicyChecker
}

// NewHandler returns a health handler. pinger and checker may be nil; then that check is skipped.
func NewHandler(pinger Pinger, checker PolicyChecker) *Handler {
	return &Handler{pinger: pinger, checker: checker}
}

// Register mounts GET /healthz on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.HealthCheck)
}

// HealthCheck returns 200 {status: ok} when every configured check passes, else 503 naming the failing check.
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	if h.pinger != nil {
		if err := h.pinger.PingContext(ctx); err != nil {
			log.Printf("health: database ping failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "check": "database"})
			return
		}
	}
	if h.checker != nil {
		if err := h.checker.HealthCheck(ctx); err != nil {
			log.Printf("health: policy check failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "check": "policy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
