package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/api/courses", "200", time.Millisecond)
	m.ObserveAggregateOperation("enrollment.enroll", "success", time.Millisecond)
	m.IncEnrollment("free")
	m.AddRevenue("IDR", 10)
	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil || buf.Len() != 0 {
		t.Fatalf("nil metrics wrote output: %q %v", buf.String(), err)
	}
}

func TestWritePrometheusExposition(t *testing.T) {
	m := New()
	m.ObserveAPI("POST", "/api/enrollments/enroll/:courseId", "201", 30*time.Millisecond)
	m.ObserveAggregateOperation("payment.reconcile.webhook", "success", 5*time.Millisecond)
	m.ObserveAggregateOperation("payment.reconcile.webhook", "success", 7*time.Millisecond)
	m.IncAggregateConflict("payment.request_refund")
	m.AddRevenue("IDR", 400)
	m.AddRevenue("idr", 100)
	m.IncWebhook("settlement", "reconciled")

	if got := m.aggregateOps.Value("payment.reconcile.webhook", "success"); got != 2 {
		t.Fatalf("aggregate ops: %v", got)
	}
	if got := m.aggregateLatency.Count("payment.reconcile.webhook"); got != 2 {
		t.Fatalf("aggregate latency count: %v", got)
	}
	if got := m.revenue.Value("idr"); got != 500 {
		t.Fatalf("revenue: %v", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE cm_api_requests_total counter",
		`cm_api_requests_total{method="POST",route="/api/enrollments/enroll/:courseId",status="201"} 1`,
		`cm_aggregate_operation_duration_seconds_bucket{operation="payment.reconcile.webhook",le="+Inf"} 2`,
		`cm_aggregate_conflicts_total{operation="payment.request_refund"} 1`,
		`cm_payment_webhooks_total{transaction_status="settlement",outcome="reconciled"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q:\n%s", want, out)
		}
	}
}

func TestLabelStringEscapes(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString: %s", got)
	}
	if withLe("", "0.5") != `{le="0.5"}` {
		t.Fatalf("withLe empty")
	}
}
