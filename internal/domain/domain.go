package domain

import (
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/domain/enrollment"
	"github.com/yungbote/coursemarket-backend/internal/domain/user"
)

type User = user.User

type Course = catalog.Course
type Module = catalog.Module
type Lesson = catalog.Lesson
type LessonContent = catalog.LessonContent
type QuizQuestion = catalog.QuizQuestion
type Review = catalog.Review

type Enrollment = enrollment.Enrollment
type EnrollmentLesson = enrollment.EnrollmentLesson
type Certificate = enrollment.Certificate
type QuizGrade = enrollment.QuizGrade

type Payment = billing.Payment
type CheckoutSession = billing.CheckoutSession
type FeeConfig = billing.FeeConfig

const (
	PaymentStatusPending       = billing.PaymentStatusPending
	PaymentStatusCompleted     = billing.PaymentStatusCompleted
	PaymentStatusFailed        = billing.PaymentStatusFailed
	PaymentStatusPendingRefund = billing.PaymentStatusPendingRefund
	PaymentStatusRefunded      = billing.PaymentStatusRefunded

	CheckoutStatusOpen   = billing.CheckoutStatusOpen
	CheckoutStatusPaid   = billing.CheckoutStatusPaid
	CheckoutStatusFailed = billing.CheckoutStatusFailed
)

// Models lists every persisted model in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&Module{},
		&Lesson{},
		&Review{},
		&CheckoutSession{},
		&Payment{},
		&Enrollment{},
		&EnrollmentLesson{},
		&Certificate{},
	}
}
