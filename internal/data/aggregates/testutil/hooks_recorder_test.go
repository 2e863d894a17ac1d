package testutil

import (
	"testing"
	"time"
)

func TestHooksRecorderCapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("enrollment.enroll", "success", 10*time.Millisecond)
	h.ObserveOperation("enrollment.enroll", "already_enrolled", time.Millisecond)
	h.IncConflict("payment.request_refund")
	h.IncRetry("certificate.issue")

	if got := h.Count("enrollment.enroll"); got != 2 {
		t.Fatalf("expected 2 enroll events, got %d", got)
	}
	if got := h.LastStatus("enrollment.enroll"); got != "already_enrolled" {
		t.Fatalf("last status: got %q", got)
	}
	if got := h.LastStatus("payment.reconcile.webhook"); got != "" {
		t.Fatalf("unknown op status: got %q", got)
	}
	if len(h.Conflicts) != 1 || h.Conflicts[0] != "payment.request_refund" {
		t.Fatalf("unexpected conflicts: %+v", h.Conflicts)
	}
	if len(h.Retries) != 1 || h.Retries[0] != "certificate.issue" {
		t.Fatalf("unexpected retries: %+v", h.Retries)
	}
}
