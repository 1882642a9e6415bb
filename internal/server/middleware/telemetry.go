package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"connections-portal/backend/internal/audit"
	"connections-portal/backend/internal/telemetry"
	"connections-portal/backend/internal/telemetry/domain"
)

const requestSource = "http_middleware"

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	Action     string `json:"action"`
	Resource   string `json:"resource"`
}

// Telemetry emits one http_request event after each request.
// Best-effort: emits run asynchronously and failures are logged. If emitter is nil, the middleware no-ops.
// skipRoutes is the set of route templates to not emit (e.g. /healthz).
func Telemetry(emitter telemetry.EventEmitter, skipRoutes map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if emitter == nil || skipRoutes[route] {
			return
		}
		if route == "" {
			route = "unmatched"
		}
		ar := audit.ParseRoute(c.Request.Method, route)
		meta := httpRequestMetadata{
			Method:     c.Request.Method,
			Route:      route,
			StatusCode: c.Writer.Status(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   c.ClientIP(),
			Action:     ar.Action,
			Resource:   ar.Resource,
		}
		metaJSON, _ := json.Marshal(meta)
		telemetry.EmitAsync(emitter, c.Request.Context(), &domain.Event{
			ID:        uuid.New().String(),
			EventType: domain.EventTypeHTTPRequest,
			Source:    requestSource,
			Metadata:  metaJSON,
			CreatedAt: time.Now().UTC(),
		})
	}
}
