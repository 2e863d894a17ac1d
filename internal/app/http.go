package app

import (
	"github.com/yungbote/coursemarket-backend/internal/http"
	httpH "github.com/yungbote/coursemarket-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursemarket-backend/internal/http/middleware"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health      *httpH.HealthHandler
	Course      *httpH.CourseHandler
	Enrollment  *httpH.EnrollmentHandler
	Lesson      *httpH.LessonHandler
	Payment     *httpH.PaymentHandler
	Certificate *httpH.CertificateHandler
	Creator     *httpH.CreatorHandler
	Admin       *httpH.AdminHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:      httpH.NewHealthHandler(),
		Course:      httpH.NewCourseHandler(log, services.Courses),
		Enrollment:  httpH.NewEnrollmentHandler(log, services.Enrollment, services.Certificates),
		Lesson:      httpH.NewLessonHandler(log, services.Lessons),
		Payment:     httpH.NewPaymentHandler(log, services.Payments),
		Certificate: httpH.NewCertificateHandler(log, services.Certificates),
		Creator:     httpH.NewCreatorHandler(log, services.Creator),
		Admin:       httpH.NewAdminHandler(log, services.Admin),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(":"+cfg.Port, http.RouterConfig{
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     metrics,
		ServiceName: serviceName,

		AuthMiddleware: middleware.Auth,

		CourseHandler:      handlers.Course,
		EnrollmentHandler:  handlers.Enrollment,
		LessonHandler:      handlers.Lesson,
		PaymentHandler:     handlers.Payment,
		CertificateHandler: handlers.Certificate,
		CreatorHandler:     handlers.Creator,
		AdminHandler:       handlers.Admin,
		HealthHandler:      handlers.Health,
	})
}
