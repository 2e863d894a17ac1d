package app

import (
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type Services struct {
	Auth         services.AuthService
	Courses      services.CourseService
	Creator      services.CreatorService
	Payments     services.PaymentService
	Enrollment   services.EnrollmentService
	Lessons      services.LessonService
	Certificates services.CertificateService
	Admin        services.AdminService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, r Repos, agg Aggregates, clock services.Clock) Services {
	log.Info("Wiring services...")

	notifier := services.NewEmailNotifier(log, clients.Mail)

	payments := services.NewPaymentService(services.PaymentServiceDeps{
		Log:      log,
		Clock:    clock,
		Bus:      clients.Bus,
		Notifier: notifier,
		Gateway:  clients.Gateway,
		Ledger:   agg.Payments,
		Courses:  r.Course,
		Users:    r.User,
		Payments: r.Payment,
		Sessions: r.CheckoutSession,
	})

	return Services{
		Auth:    services.NewAuthService(log, r.User, cfg.JWTSecretKey),
		Courses: services.NewCourseService(log, r.Course, r.Module, r.Lesson, r.Review, r.User, r.Enrollment, r.EnrollmentLesson, agg.Catalog),
		Creator: services.NewCreatorService(log, clock, clients.Bus, r.Course, r.Module, r.Lesson, r.Enrollment, r.Payment, r.User, agg.Catalog),
		Payments: payments,
		Enrollment: services.NewEnrollmentService(log, clock, clients.Bus, notifier, agg.Enrollment, payments,
			r.Course, r.Module, r.Lesson, r.User, r.Enrollment, r.EnrollmentLesson),
		Lessons:      services.NewLessonService(log, clock, clients.Bus, agg.Progression, r.Course, r.Lesson, r.Enrollment),
		Certificates: services.NewCertificateService(log, clock, clients.Bus, notifier, agg.Certificates, r.Certificate, r.Course, r.User),
		Admin: services.NewAdminService(services.AdminServiceDeps{
			Log:           log,
			Clock:         clock,
			Bus:           clients.Bus,
			MinimumPayout: cfg.Policy.Payments.MinimumPayout,
			Payments:      agg.Payments,
			Catalog:       agg.Catalog,
			Users:         r.User,
			Courses:       r.Course,
			Enrollments:   r.Enrollment,
			Certificates:  r.Certificate,
			PaymentRows:   r.Payment,
		}),
	}
}
