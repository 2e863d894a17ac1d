package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type Aggregates struct {
	Enrollment   domainagg.EnrollmentLedger
	Progression  domainagg.ProgressionEngine
	Payments     domainagg.PaymentLedger
	Certificates domainagg.CertificationIssuer
	Catalog      domainagg.CatalogAggregate
}

func wireAggregates(db *gorm.DB, log *logger.Logger, policy MarketplacePolicy, metrics *observability.Metrics, r Repos) Aggregates {
	log.Info("Wiring aggregates...")
	base := aggregates.BaseDeps{
		DB:    db,
		Log:   log,
		Hooks: aggregates.NewObservabilityHooks(metrics),
	}
	return Aggregates{
		Enrollment: aggregates.NewEnrollmentLedger(aggregates.EnrollmentLedgerDeps{
			Base:        base,
			Courses:     r.Course,
			Enrollments: r.Enrollment,
		}),
		Progression: aggregates.NewProgressionEngine(aggregates.ProgressionEngineDeps{
			Base:        base,
			Policy:      policy.Progression,
			Lessons:     r.Lesson,
			Enrollments: r.Enrollment,
			Completions: r.EnrollmentLesson,
		}),
		Payments: aggregates.NewPaymentLedger(aggregates.PaymentLedgerDeps{
			Base:         base,
			Fees:         policy.Fees(),
			RefundWindow: policy.RefundWindow(),
			Courses:      r.Course,
			Enrollments:  r.Enrollment,
			Payments:     r.Payment,
			Sessions:     r.CheckoutSession,
		}),
		Certificates: aggregates.NewCertificationIssuer(aggregates.CertificationIssuerDeps{
			Base:         base,
			BaseURL:      policy.Certificates.BaseURL,
			Enrollments:  r.Enrollment,
			Certificates: r.Certificate,
		}),
		Catalog: aggregates.NewCatalogAggregate(aggregates.CatalogAggregateDeps{
			Base:        base,
			Courses:     r.Course,
			Modules:     r.Module,
			Lessons:     r.Lesson,
			Reviews:     r.Review,
			Enrollments: r.Enrollment,
			Completions: r.EnrollmentLesson,
		}),
	}
}

// Contracts returns the self-descriptions of every wired aggregate.
func (a Aggregates) Contracts() []domainagg.Contract {
	all := []domainagg.Aggregate{a.Enrollment, a.Progression, a.Payments, a.Certificates, a.Catalog}
	out := make([]domainagg.Contract, 0, len(all))
	for _, agg := range all {
		if agg == nil {
			continue
		}
		out = append(out, agg.Contract())
	}
	return out
}

// checkContracts refuses to start when an aggregate hands its write
// transaction to callers.
func checkContracts(log *logger.Logger, aggs Aggregates) error {
	for _, c := range aggs.Contracts() {
		if err := c.Validate(); err != nil {
			return err
		}
		if !c.RequiresAggregateOwnedTx() {
			return fmt.Errorf("%s: ledger writes must own their transaction", c.Name)
		}
		log.Debug("Aggregate contract", "name", c.Name, "tables", c.Tables, "read_policy", c.ReadPolicy)
	}
	return nil
}
