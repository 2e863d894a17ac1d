package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/repos/billing"
	"github.com/yungbote/coursemarket-backend/internal/data/repos/catalog"
	"github.com/yungbote/coursemarket-backend/internal/data/repos/enrollment"
	"github.com/yungbote/coursemarket-backend/internal/data/repos/user"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo

type CourseRepo = catalog.CourseRepo
type CourseFilter = catalog.CourseFilter
type ModuleRepo = catalog.ModuleRepo
type LessonRepo = catalog.LessonRepo
type ReviewRepo = catalog.ReviewRepo

type EnrollmentRepo = enrollment.EnrollmentRepo
type EnrollmentLessonRepo = enrollment.EnrollmentLessonRepo
type CertificateRepo = enrollment.CertificateRepo

type PaymentRepo = billing.PaymentRepo
type PaymentFilter = billing.PaymentFilter
type PaymentTotals = billing.Totals
type MonthlyPoint = billing.MonthlyPoint
type CheckoutSessionRepo = billing.CheckoutSessionRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return catalog.NewCourseRepo(db, baseLog)
}
func NewModuleRepo(db *gorm.DB, baseLog *logger.Logger) ModuleRepo {
	return catalog.NewModuleRepo(db, baseLog)
}
func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	return catalog.NewLessonRepo(db, baseLog)
}
func NewReviewRepo(db *gorm.DB, baseLog *logger.Logger) ReviewRepo {
	return catalog.NewReviewRepo(db, baseLog)
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return enrollment.NewEnrollmentRepo(db, baseLog)
}
func NewEnrollmentLessonRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentLessonRepo {
	return enrollment.NewEnrollmentLessonRepo(db, baseLog)
}
func NewCertificateRepo(db *gorm.DB, baseLog *logger.Logger) CertificateRepo {
	return enrollment.NewCertificateRepo(db, baseLog)
}

func NewPaymentRepo(db *gorm.DB, baseLog *logger.Logger) PaymentRepo {
	return billing.NewPaymentRepo(db, baseLog)
}
func NewCheckoutSessionRepo(db *gorm.DB, baseLog *logger.Logger) CheckoutSessionRepo {
	return billing.NewCheckoutSessionRepo(db, baseLog)
}
