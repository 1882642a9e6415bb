package ratelimit

import (
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests with 429 once the client IP exceeds the limit.
// Redis failures let the request through.
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		err := l.Allow(c.Request.Context(), ip)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, ErrRateLimited):
			if d := l.RetryAfter(c.Request.Context(), ip); d > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many OTP requests. Please try again later."})
		default:
			log.Printf("ratelimit: %v; allowing request", err)
			c.Next()
		}
	}
}
