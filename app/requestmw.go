package app

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const (
	HeaderRequestID = "X-Request-ID"
	// HeaderActor names who performs an administrative change. There is no
	// authentication in front of the API; the value is recorded, not trusted.
	HeaderActor = "X-Actor"
)

// RequestID propagates or assigns a request id and stores the caller's actor
// label on the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(HeaderRequestID, id)
		if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
			c.Set("actor", actor)
		}
		c.Next()
	}
}

func AccessLog(log hclog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString("requestID"),
		}
		if c.Writer.Status() >= 500 {
			log.Warn("request", args...)
			return
		}
		log.Debug("request", args...)
	}
}

// Actor returns the label set by RequestID, or fallback.
func Actor(c *gin.Context, fallback string) string {
	if v := c.GetString("actor"); v != "" {
		return v
	}
	return fallback
}
