package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/coursemarket-backend/internal/domain/enrollment"
)

var CertificationIssuerContract = Contract{
	Name:             "Marketplace.CertificationIssuer",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Tables:           []string{"certificate", "enrollment"},
	Notes:            "Issues at most one uniquely numbered certificate per completed enrollment.",
}

// CertificationIssuer issues completion certificates.
//
// Failures: CodeNotEnrolled, CodeCourseIncomplete, CodeRetryable (number space exhausted), CodeInternal.
type CertificationIssuer interface {
	Aggregate

	// Issue is idempotent: a second call returns the existing certificate.
	Issue(ctx context.Context, in IssueCertificateInput) (IssueCertificateResult, error)
}

type IssueCertificateInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	At       time.Time
}

type IssueCertificateResult struct {
	Certificate *enrollment.Certificate
	Enrollment  *enrollment.Enrollment
	Created     bool
}
