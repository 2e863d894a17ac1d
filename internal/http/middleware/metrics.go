package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/observability"
)

// Metrics records request counts and latency per matched route. Scrapes of
// /metrics and liveness probes are not counted.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/metrics", "/healthcheck":
			c.Next()
			return
		}

		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			// Unmatched paths share one label so scanners cannot blow up cardinality.
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
