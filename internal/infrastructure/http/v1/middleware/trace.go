package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	appctx "supplyledger/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Trace middleware puts a TraceContext on the request. Incoming X-Request-ID
// and X-Trace-ID headers are honoured, then an active OpenTelemetry span.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := appctx.NewTraceContext()

		if requestID := c.GetHeader(HeaderRequestID); requestID != "" {
			tc.RequestID = requestID
		}
		if traceID := c.GetHeader(HeaderTraceID); traceID != "" {
			tc.TraceID = traceID
		} else if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			tc.TraceID = sc.TraceID().String()
			tc.SpanID = sc.SpanID().String()
		}

		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), tc))

		c.Set("trace_id", tc.TraceID)
		c.Set("request_id", tc.RequestID)

		c.Header(HeaderRequestID, tc.RequestID)
		c.Header(HeaderTraceID, tc.TraceID)

		c.Next()
	}
}
