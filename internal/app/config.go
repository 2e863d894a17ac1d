package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/coursemarket-backend/internal/clients/redis"
	"github.com/yungbote/coursemarket-backend/internal/data/db"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/envutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/midtrans"
	"github.com/yungbote/coursemarket-backend/internal/platform/sendgrid"
)

type Config struct {
	Port            string
	Env             string
	LogMode         string
	JWTSecretKey    string
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	DB       db.Config
	Redis    redis.Config
	Midtrans midtrans.Config
	SendGrid sendgrid.Config
	Otel     observability.OtelConfig

	Policy MarketplacePolicy
}

// MarketplacePolicy is the tunable business policy. It is passed explicitly
// into the payment, progression and certificate components.
type MarketplacePolicy struct {
	Payments     PaymentPolicy               `yaml:"payments"`
	Progression  domainagg.ProgressionPolicy `yaml:"progression"`
	Certificates CertificatePolicy           `yaml:"certificates"`
}

type PaymentPolicy struct {
	Currency           string  `yaml:"currency"`
	PlatformFeePercent float64 `yaml:"platform_fee_percent"`
	RefundWindowDays   int     `yaml:"refund_window_days"`
	MinimumPayout      float64 `yaml:"minimum_payout"`
}

type CertificatePolicy struct {
	BaseURL string `yaml:"base_url"`
}

func DefaultPolicy() MarketplacePolicy {
	fees := billing.DefaultFeeConfig()
	return MarketplacePolicy{
		Payments: PaymentPolicy{
			Currency:           fees.Currency,
			PlatformFeePercent: fees.PlatformFeePercent,
			RefundWindowDays:   30,
			MinimumPayout:      1000,
		},
		Progression: domainagg.DefaultProgressionPolicy(),
		Certificates: CertificatePolicy{
			BaseURL: "http://localhost:8080/certificates",
		},
	}
}

func (p MarketplacePolicy) Fees() billing.FeeConfig {
	return billing.FeeConfig{Currency: p.Payments.Currency, PlatformFeePercent: p.Payments.PlatformFeePercent}
}

func (p MarketplacePolicy) RefundWindow() time.Duration {
	return time.Duration(p.Payments.RefundWindowDays) * 24 * time.Hour
}

func (p MarketplacePolicy) Validate() error {
	if err := p.Fees().Validate(); err != nil {
		return err
	}
	if p.Payments.RefundWindowDays < 1 {
		return fmt.Errorf("refund_window_days must be at least 1")
	}
	if p.Payments.MinimumPayout < 0 {
		return fmt.Errorf("minimum_payout must not be negative")
	}
	if r := p.Progression.VideoCompletionRatio; r <= 0 || r > 1 {
		return fmt.Errorf("video_completion_ratio must be within (0,1], got %v", r)
	}
	if q := p.Progression.QuizPassPercent; q < 0 || q > 100 {
		return fmt.Errorf("quiz_pass_percent must be within [0,100], got %v", q)
	}
	if strings.TrimSpace(p.Certificates.BaseURL) == "" {
		return fmt.Errorf("certificates.base_url is required")
	}
	return nil
}

func LoadConfig(log *logger.Logger) (Config, error) {
	policy, err := LoadPolicy(envutil.String("MARKETPLACE_CONFIG_FILE", ""))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Port:            envutil.String("PORT", "8080"),
		Env:             envutil.String("APP_ENV", "development"),
		LogMode:         envutil.String("LOG_MODE", "development"),
		JWTSecretKey:    envutil.String("JWT_SECRET", ""),
		CORSOrigins:     envutil.List("CORS_ALLOWED_ORIGINS", nil),
		ShutdownTimeout: time.Duration(envutil.Int("SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		DB:              db.ConfigFromEnv(),
		Redis:           redis.ConfigFromEnv(),
		Midtrans:        midtrans.ConfigFromEnv(),
		SendGrid:        sendgrid.ConfigFromEnv(),
		Otel:            observability.OtelConfigFromEnv(),
		Policy:          policy,
	}
	if strings.TrimSpace(cfg.JWTSecretKey) == "" {
		if strings.EqualFold(cfg.Env, "production") {
			return Config{}, fmt.Errorf("JWT_SECRET is required in production")
		}
		log.Warn("JWT_SECRET not set; using an insecure development secret")
		cfg.JWTSecretKey = "development-secret"
	}
	if strings.TrimSpace(cfg.Midtrans.ServerKey) == "" {
		log.Warn("MIDTRANS_SERVER_KEY not set; paid checkouts will fail")
	}
	return cfg, nil
}

// LoadPolicy starts from the defaults, overlays the YAML file at path (if
// any) and then applies environment overrides.
func LoadPolicy(path string) (MarketplacePolicy, error) {
	policy := DefaultPolicy()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return MarketplacePolicy{}, fmt.Errorf("read marketplace config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &policy); err != nil {
			return MarketplacePolicy{}, fmt.Errorf("parse marketplace config %s: %w", path, err)
		}
	}

	policy.Payments.Currency = strings.ToLower(envutil.String("PAYMENT_CURRENCY", policy.Payments.Currency))
	policy.Payments.PlatformFeePercent = envutil.Float("PLATFORM_FEE_PERCENT", policy.Payments.PlatformFeePercent)
	policy.Payments.RefundWindowDays = envutil.Int("REFUND_WINDOW_DAYS", policy.Payments.RefundWindowDays)
	policy.Payments.MinimumPayout = envutil.Float("MINIMUM_PAYOUT", policy.Payments.MinimumPayout)
	policy.Progression.VideoCompletionRatio = envutil.Float("VIDEO_COMPLETION_RATIO", policy.Progression.VideoCompletionRatio)
	policy.Progression.QuizPassPercent = envutil.Float("QUIZ_PASS_PERCENT", policy.Progression.QuizPassPercent)
	policy.Certificates.BaseURL = strings.TrimRight(envutil.String("CERTIFICATE_BASE_URL", policy.Certificates.BaseURL), "/")

	if err := policy.Validate(); err != nil {
		return MarketplacePolicy{}, fmt.Errorf("marketplace policy: %w", err)
	}
	return policy, nil
}
