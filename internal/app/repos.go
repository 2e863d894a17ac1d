package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type Repos struct {
	User             repos.UserRepo
	Course           repos.CourseRepo
	Module           repos.ModuleRepo
	Lesson           repos.LessonRepo
	Review           repos.ReviewRepo
	Enrollment       repos.EnrollmentRepo
	EnrollmentLesson repos.EnrollmentLessonRepo
	Certificate      repos.CertificateRepo
	Payment          repos.PaymentRepo
	CheckoutSession  repos.CheckoutSessionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:             repos.NewUserRepo(db, log),
		Course:           repos.NewCourseRepo(db, log),
		Module:           repos.NewModuleRepo(db, log),
		Lesson:           repos.NewLessonRepo(db, log),
		Review:           repos.NewReviewRepo(db, log),
		Enrollment:       repos.NewEnrollmentRepo(db, log),
		EnrollmentLesson: repos.NewEnrollmentLessonRepo(db, log),
		Certificate:      repos.NewCertificateRepo(db, log),
		Payment:          repos.NewPaymentRepo(db, log),
		CheckoutSession:  repos.NewCheckoutSessionRepo(db, log),
	}
}
