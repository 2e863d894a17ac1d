package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

type EnrollmentLedgerDeps struct {
	Base        BaseDeps
	Courses     repos.CourseRepo
	Enrollments repos.EnrollmentRepo
}

type enrollmentLedger struct {
	deps EnrollmentLedgerDeps
}

func NewEnrollmentLedger(deps EnrollmentLedgerDeps) domainagg.EnrollmentLedger {
	deps.Base = deps.Base.withDefaults()
	return &enrollmentLedger{deps: deps}
}

func (a *enrollmentLedger) Contract() domainagg.Contract {
	return domainagg.EnrollmentLedgerContract
}

func (a *enrollmentLedger) Enroll(ctx context.Context, in domainagg.EnrollInput) (domainagg.EnrollResult, error) {
	const op = "enrollment.enroll"
	if in.UserID == uuid.Nil {
		return domainagg.EnrollResult{}, fail(domainagg.CodeValidation, op, "missing user_id")
	}
	if in.CourseID == uuid.Nil {
		return domainagg.EnrollResult{}, fail(domainagg.CodeValidation, op, "missing course_id")
	}

	var out domainagg.EnrollResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.deps.Courses.GetByID(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if course == nil {
			return fail(domainagg.CodeNotFound, op, "course not found")
		}
		if !course.Available() {
			return fail(domainagg.CodeCourseUnavailable, op, "course is not available for enrollment")
		}
		if in.PaymentID == nil && !course.IsFree() {
			return fail(domainagg.CodePreconditionFailed, op, "course requires payment")
		}

		row, created, err := recordEnrollment(dbc, a.deps.Courses, a.deps.Enrollments, in.UserID, course.ID, in.PaymentID, nowOr(in.EnrolledAt))
		if err != nil {
			return err
		}
		if !created {
			return fail(domainagg.CodeAlreadyEnrolled, op, "already enrolled in this course")
		}
		out.Enrollment = row
		return nil
	})
	if err != nil {
		return domainagg.EnrollResult{}, err
	}
	return out, nil
}

// recordEnrollment inserts the (user, course) enrollment under its unique
// index. When the pair already exists the stored row is returned with
// created=false and no counter is touched.
func recordEnrollment(
	dbc dbctx.Context,
	courses repos.CourseRepo,
	enrollments repos.EnrollmentRepo,
	userID, courseID uuid.UUID,
	paymentID *uuid.UUID,
	at time.Time,
) (*types.Enrollment, bool, error) {
	row := &types.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		PaymentID:  paymentID,
		EnrolledAt: at,
	}
	created, err := enrollments.CreateIfAbsent(dbc, row)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := enrollments.GetByUserCourse(dbc, userID, courseID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, ConflictError("enrollment insert skipped but no row found")
		}
		return existing, false, nil
	}
	if err := courses.AdjustCounters(dbc, courseID, 0, 0, 1); err != nil {
		return nil, false, err
	}
	row.CompletedLessons = []uuid.UUID{}
	return row, true, nil
}
