package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/coursemarket-backend/internal/domain/enrollment"
)

var EnrollmentLedgerContract = Contract{
	Name:             "Marketplace.EnrollmentLedger",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Tables:           []string{"enrollment", "course"},
	Notes:            "Owns the one-enrollment-per-learner-and-course rule and the course enrolled_students counter.",
}

// EnrollmentLedger records a learner's access to a course.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeCourseUnavailable, CodeAlreadyEnrolled, CodeInternal.
type EnrollmentLedger interface {
	Aggregate

	// Enroll creates the enrollment and increments the course's enrolled_students counter.
	Enroll(ctx context.Context, in EnrollInput) (EnrollResult, error)
}

type EnrollInput struct {
	UserID     uuid.UUID
	CourseID   uuid.UUID
	PaymentID  *uuid.UUID
	EnrolledAt time.Time
}

type EnrollResult struct {
	Enrollment *enrollment.Enrollment
}
