package observability

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := parseHeaders(" api-key = abc ,broken, x=1,=y")
	if len(got) != 2 || got["api-key"] != "abc" || got["x"] != "1" {
		t.Fatalf("parseHeaders: %+v", got)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty headers must be nil")
	}
}

func TestClampRatio(t *testing.T) {
	if clampRatio(-1) != 0 || clampRatio(2) != 1 || clampRatio(0.25) != 0.25 {
		t.Fatalf("clampRatio out of range")
	}
}

func TestInitOTelDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown := InitOTel(context.Background(), nil, OtelConfig{Enabled: false})
	if shutdown == nil {
		t.Fatalf("shutdown must not be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
