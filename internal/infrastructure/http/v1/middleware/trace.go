package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "invclose/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Trace reads or generates request and trace ids and echoes them back.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		t := appctx.NewTraceContext(ctx, c.GetHeader(HeaderTraceID), c.GetHeader(HeaderRequestID))
		c.Request = c.Request.WithContext(appctx.WithTrace(ctx, t))

		c.Set("trace_id", t.TraceID)
		c.Set("request_id", t.RunID)
		c.Header(HeaderRequestID, t.RunID)
		c.Header(HeaderTraceID, t.TraceID)

		c.Next()
	}
}
