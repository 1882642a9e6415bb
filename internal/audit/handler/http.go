// Package handler serves the login activity log endpoints.
package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"connections-portal/backend/internal/audit"
)

// Handler serves GET /api/login-logs and POST /api/login-logs/clear.
type Handler struct {
	sink audit.Sink
}

// NewHandler returns a Handler reading from sink.
func NewHandler(sink audit.Sink) *Handler {
	return &Handler{sink: sink}
}

// Register mounts the log routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/api/login-logs", h.ListLogs)
	r.POST("/api/login-logs/clear", h.ClearLogs)
}

// ListLogs returns the tail of the log. ?limit= overrides the default of 100.
func (h *Handler) ListLogs(c *gin.Context) {
	limit := audit.DefaultTailLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	res, err := h.sink.TailRead(limit)
	if err != nil {
		log.Printf("audit: read logs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Logs retrieved successfully",
		"logs":        res.Entries,
		"total_lines": res.TotalLines,
	})
}

// ClearLogs archives the log to a timestamped backup and starts a fresh one.
func (h *Handler) ClearLogs(c *gin.Context) {
	backup, err := h.sink.Archive()
	if err != nil {
		log.Printf("audit: archive logs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear logs"})
		return
	}
	if backup == "" {
		c.JSON(http.StatusOK, gin.H{"message": "No logs to clear"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Logs cleared successfully",
		"backup_created": backup,
	})
}
