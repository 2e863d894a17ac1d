package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name      string
		requestID string
		traceID   string
		wantReq   string
		wantTrace string
	}{
		{"client ids kept", "req-1", "trace.abc", "req-1", "trace.abc"},
		{"trace falls back to request id", "req-2", "", "req-2", "req-2"},
		{"header injection dropped", "bad\nid", "", "", ""},
		{"oversized id dropped", strings.Repeat("a", 65), "", "", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var seen *ctxutil.TraceData
			r := gin.New()
			r.Use(AttachTraceContext())
			r.GET("/x", func(c *gin.Context) {
				seen = ctxutil.GetTraceData(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.requestID != "" {
				req.Header[headerRequestID] = []string{tc.requestID}
			}
			if tc.traceID != "" {
				req.Header.Set(headerTraceID, tc.traceID)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if seen == nil || seen.RequestID == "" || seen.TraceID == "" {
				t.Fatalf("trace data not attached: %+v", seen)
			}
			if tc.wantReq != "" && seen.RequestID != tc.wantReq {
				t.Fatalf("request id: want=%q got=%q", tc.wantReq, seen.RequestID)
			}
			if tc.wantReq == "" && seen.RequestID == tc.requestID {
				t.Fatalf("unsafe request id was kept: %q", seen.RequestID)
			}
			if tc.wantTrace != "" && seen.TraceID != tc.wantTrace {
				t.Fatalf("trace id: want=%q got=%q", tc.wantTrace, seen.TraceID)
			}
			if got := rec.Header().Get(headerRequestID); got != seen.RequestID {
				t.Fatalf("response header: want=%q got=%q", seen.RequestID, got)
			}
		})
	}
}

func TestMetricsSkipsScrapesAndGroupsUnmatchedRoutes(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	m := observability.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/courses/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapF(m.WriteHTTP))

	for _, path := range []string{"/api/courses/1", "/api/courses/2", "/nope", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `cm_api_requests_total{method="GET",route="/api/courses/:id",status="200"} 2`) {
		t.Fatalf("route not aggregated by pattern:\n%s", out)
	}
	if !strings.Contains(out, `route="unmatched",status="404"} 1`) {
		t.Fatalf("unmatched route label missing:\n%s", out)
	}
	if strings.Contains(out, `route="/metrics"`) {
		t.Fatalf("scrapes should not be counted:\n%s", out)
	}
}
