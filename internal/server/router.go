// Package server builds the HTTP router that mounts every feature handler.
package server

import (
	"log"

	"github.com/gin-gonic/gin"

	apphandler "connections-portal/backend/internal/application/handler"
	audithandler "connections-portal/backend/internal/audit/handler"
	devotphandler "connections-portal/backend/internal/devotp/handler"
	healthhandler "connections-portal/backend/internal/health/handler"
	otphandler "connections-portal/backend/internal/otp/handler"
	"connections-portal/backend/internal/ratelimit"
	"connections-portal/backend/internal/server/middleware"
	"connections-portal/backend/internal/telemetry"
)

// Deps holds the handlers and cross-cutting dependencies for the router. Any nil handler is not mounted.
type Deps struct {
	// OTP serves /api/send-otp and /api/verify-otp.
	OTP *otphandler.Handler
	// SendLimiter throttles /api/send-otp per client IP. If nil, sends are not rate limited.
	SendLimiter *ratelimit.Limiter
	// Audit serves /api/login-logs.
	Audit *audithandler.Handler
	// Applications serves /api/applications and /api/load-items.
	Applications *apphandler.Handler
	// DevOTP serves GET /dev/otp. Set only when dev OTP mode is enabled and not production.
	DevOTP *devotphandler.Handler
	// Health serves GET /healthz.
	Health *healthhandler.Handler
	// Telemetry receives one http_request event per request. If nil, no request events are emitted.
	Telemetry telemetry.EventEmitter
	// AllowedOrigins for CORS; empty or "*" allows any.
	AllowedOrigins []string
	// TrustedProxies whose X-Forwarded-For is honoured when resolving the client IP.
	// Empty trusts no one: the rate limiter and audit log see the connection's remote address.
	TrustedProxies []string
}

// skipTelemetryRoutes are polled by probes and would drown out real traffic.
var skipTelemetryRoutes = map[string]bool{"/healthz": true}

// NewRouter returns a gin engine with logging, recovery, CORS, request origin, tracing and telemetry middleware,
// and every handler in deps mounted.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		log.Printf("server: invalid trusted proxies %v: %v; trusting none", deps.TrustedProxies, err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(
		gin.Logger(),
		gin.Recovery(),
		middleware.CORS(deps.AllowedOrigins),
		middleware.RequestOrigin(),
		middleware.Tracing(skipTelemetryRoutes),
		middleware.Telemetry(deps.Telemetry, skipTelemetryRoutes),
	)

	if deps.Health != nil {
		deps.Health.Register(r)
	}
	if deps.OTP != nil {
		var guards []gin.HandlerFunc
		if deps.SendLimiter != nil {
			guards = append(guards, ratelimit.Middleware(deps.SendLimiter))
		}
		deps.OTP.Register(r, guards...)
	}
	if deps.Audit != nil {
		deps.Audit.Register(r)
	}
	if deps.Applications != nil {
		deps.Applications.Register(r)
	}
	if deps.DevOTP != nil {
		deps.DevOTP.Register(r)
	}
	return r
}
