// Package middleware holds the gin middleware shared by every route: request origin, CORS and telemetry.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

type contextKey struct{ name string }

var (
	clientIPKey  = contextKey{"client_ip"}
	userAgentKey = contextKey{"user_agent"}
)

// WithOrigin returns a context with the client IP and user agent set.
// Services read these via ClientIP, UserAgent or Origin.
func WithOrigin(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, ip)
	ctx = context.WithValue(ctx, userAgentKey, userAgent)
	return ctx
}

// ClientIP returns the client IP from context, or "" if not set.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// UserAgent returns the user agent from context, or "" if not set.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey).(string)
	return v
}

// Origin returns both values. It satisfies audit.OriginExtractor.
func Origin(ctx context.Context) (ip, userAgent string) {
	return ClientIP(ctx), UserAgent(ctx)
}

// RequestOrigin stores the gin-resolved client IP and the User-Agent header on the request context.
func RequestOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithOrigin(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
