package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPolicyDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p.Payments.PlatformFeePercent != 15 || p.Payments.Currency != "idr" {
		t.Fatalf("unexpected payment defaults: %+v", p.Payments)
	}
	if p.RefundWindow() != 30*24*time.Hour {
		t.Fatalf("refund window=%s", p.RefundWindow())
	}
	if p.Progression.VideoCompletionRatio != 0.9 || p.Progression.QuizPassPercent != 70 {
		t.Fatalf("unexpected progression defaults: %+v", p.Progression)
	}
}

func TestLoadPolicyFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketplace.yaml")
	body := []byte(`
payments:
  currency: usd
  platform_fee_percent: 20
  minimum_payout: 50
progression:
  quiz_pass_percent: 80
certificates:
  base_url: https://certs.example.com/
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PLATFORM_FEE_PERCENT", "10")

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p.Payments.Currency != "usd" || p.Payments.MinimumPayout != 50 {
		t.Fatalf("file values not applied: %+v", p.Payments)
	}
	if p.Payments.PlatformFeePercent != 10 {
		t.Fatalf("env should override the file: got %v", p.Payments.PlatformFeePercent)
	}
	if p.Payments.RefundWindowDays != 30 {
		t.Fatalf("unset keys keep defaults: got %d", p.Payments.RefundWindowDays)
	}
	if p.Progression.QuizPassPercent != 80 || p.Progression.VideoCompletionRatio != 0.9 {
		t.Fatalf("unexpected progression: %+v", p.Progression)
	}
	if p.Certificates.BaseURL != "https://certs.example.com" {
		t.Fatalf("base url=%q", p.Certificates.BaseURL)
	}
}

func TestLoadPolicyRejectsBadValues(t *testing.T) {
	t.Setenv("PLATFORM_FEE_PERCENT", "120")
	if _, err := LoadPolicy(""); err == nil {
		t.Fatalf("fee above 100%% should be rejected")
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("missing file should fail")
	}
}
