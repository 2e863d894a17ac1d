package testutil

import (
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// Ledgers wires every aggregate to real repositories over db.
type Ledgers struct {
	Hooks *HooksRecorder

	Enrollment   domainagg.EnrollmentLedger
	Progression  domainagg.ProgressionEngine
	Payments     domainagg.PaymentLedger
	Certificates domainagg.CertificationIssuer
	Catalog      domainagg.CatalogAggregate
}

type LedgerOption func(*ledgerConfig)

type ledgerConfig struct {
	runner     aggregates.TxRunner
	fees       billing.FeeConfig
	nextNumber aggregates.CertificateNumberFunc
}

func WithRunner(r aggregates.TxRunner) LedgerOption {
	return func(c *ledgerConfig) { c.runner = r }
}

func WithFees(f billing.FeeConfig) LedgerOption {
	return func(c *ledgerConfig) { c.fees = f }
}

func WithCertificateNumbers(fn aggregates.CertificateNumberFunc) LedgerOption {
	return func(c *ledgerConfig) { c.nextNumber = fn }
}

func NewLedgers(tb testing.TB, db *gorm.DB, opts ...LedgerOption) *Ledgers {
	tb.Helper()
	cfg := ledgerConfig{fees: billing.DefaultFeeConfig()}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := logger.Nop()
	hooks := &HooksRecorder{}
	base := aggregates.BaseDeps{DB: db, Log: log, Runner: cfg.runner, Hooks: hooks}

	courses := repos.NewCourseRepo(db, log)
	modules := repos.NewModuleRepo(db, log)
	lessons := repos.NewLessonRepo(db, log)
	reviews := repos.NewReviewRepo(db, log)
	enrollments := repos.NewEnrollmentRepo(db, log)
	completions := repos.NewEnrollmentLessonRepo(db, log)
	certificates := repos.NewCertificateRepo(db, log)
	payments := repos.NewPaymentRepo(db, log)
	sessions := repos.NewCheckoutSessionRepo(db, log)

	return &Ledgers{
		Hooks: hooks,
		Enrollment: aggregates.NewEnrollmentLedger(aggregates.EnrollmentLedgerDeps{
			Base:        base,
			Courses:     courses,
			Enrollments: enrollments,
		}),
		Progression: aggregates.NewProgressionEngine(aggregates.ProgressionEngineDeps{
			Base:        base,
			Policy:      domainagg.DefaultProgressionPolicy(),
			Lessons:     lessons,
			Enrollments: enrollments,
			Completions: completions,
		}),
		Payments: aggregates.NewPaymentLedger(aggregates.PaymentLedgerDeps{
			Base:        base,
			Fees:        cfg.fees,
			Courses:     courses,
			Enrollments: enrollments,
			Payments:    payments,
			Sessions:    sessions,
		}),
		Certificates: aggregates.NewCertificationIssuer(aggregates.CertificationIssuerDeps{
			Base:         base,
			BaseURL:      "https://cdn.example.com/certificates",
			NextNumber:   cfg.nextNumber,
			Enrollments:  enrollments,
			Certificates: certificates,
		}),
		Catalog: aggregates.NewCatalogAggregate(aggregates.CatalogAggregateDeps{
			Base:        base,
			Courses:     courses,
			Modules:     modules,
			Lessons:     lessons,
			Reviews:     reviews,
			Enrollments: enrollments,
			Completions: completions,
		}),
	}
}
