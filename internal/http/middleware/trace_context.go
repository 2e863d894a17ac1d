package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"

	maxCorrelationIDLen = 64
)

// AttachTraceContext stores request and trace ids on the request context and
// echoes them back. Client supplied ids are kept only when they look sane; the
// active span's trace id wins over a client trace header.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := cleanCorrelationID(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}

		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = cleanCorrelationID(c.GetHeader(headerTraceID))
		}
		if traceID == "" {
			traceID = reqID
		}

		td := &ctxutil.TraceData{TraceID: traceID, RequestID: reqID}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Set("trace_id", traceID)
		c.Set("request_id", reqID)
		c.Header(headerTraceID, traceID)
		c.Header(headerRequestID, reqID)
		c.Next()
	}
}

// cleanCorrelationID drops ids that are too long or carry characters that
// would corrupt log lines.
func cleanCorrelationID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxCorrelationIDLen {
		return ""
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return ""
		}
	}
	return id
}
