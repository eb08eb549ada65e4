package middleware

import (
	"context"
	"strings"

	"github.com/turingarena/turingarena-sub002/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"
)

// TraceContext makes sure every request carries a trace id and a request id,
// both in the gin context (for the response envelope) and in the request
// context (for the logger).
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = propagate(c, ctx, traceIDHeader, "trace_id", contextkey.TraceID)
		ctx = propagate(c, ctx, requestIDHeader, "request_id", contextkey.RequestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func propagate(c *gin.Context, ctx context.Context, header, ginKey string, key contextkey.Key) context.Context {
	id := strings.TrimSpace(c.GetHeader(header))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(ginKey, id)
	c.Writer.Header().Set(header, id)
	return context.WithValue(ctx, key, id)
}
