package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/coursemarket-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursemarket-backend/internal/http/middleware"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	CORSOrigins []string
	Metrics     *observability.Metrics
	// ServiceName enables otelgin spans when set.
	ServiceName string

	AuthMiddleware *httpMW.AuthMiddleware

	CourseHandler      *httpH.CourseHandler
	EnrollmentHandler  *httpH.EnrollmentHandler
	LessonHandler      *httpH.LessonHandler
	PaymentHandler     *httpH.PaymentHandler
	CertificateHandler *httpH.CertificateHandler
	CreatorHandler     *httpH.CreatorHandler
	AdminHandler       *httpH.AdminHandler
	HealthHandler      *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(httpMW.Recover(cfg.Log))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")

	optional := func(c *gin.Context) { c.Next() }
	requireAuth := func(c *gin.Context) { c.Next() }
	if cfg.AuthMiddleware != nil {
		optional = cfg.AuthMiddleware.OptionalAuth()
		requireAuth = cfg.AuthMiddleware.RequireAuth()
	}

	// Catalog
	if h := cfg.CourseHandler; h != nil {
		api.GET("/courses", optional, h.ListCourses)
		api.GET("/courses/:id", optional, h.GetCourse)
		api.GET("/courses/:id/preview", h.GetCoursePreview)
		api.POST("/courses/:id/review", requireAuth, h.AddReview)
	}

	// Payments (public: gateway redirect and webhook)
	if h := cfg.PaymentHandler; h != nil {
		api.GET("/payments/verify", h.Verify)
		api.POST("/payments/webhook", h.Webhook)
	}

	// Certificates (public verification)
	if h := cfg.CertificateHandler; h != nil {
		api.GET("/certificates/:number", h.GetCertificate)
		api.GET("/certificates/:number/image", h.RenderCertificate)
	}

	protected := api.Group("/")
	protected.Use(requireAuth)
	{
		if h := cfg.EnrollmentHandler; h != nil {
			protected.POST("/courses/:id/enroll", h.Enroll)
			protected.GET("/enrollments/me", h.ListMine)
			protected.GET("/enrollments/:id", h.GetEnrollment)
			protected.GET("/enrollments/course/:id", h.GetCourseContent)
			protected.POST("/enrollments/course/:id/certificate", h.IssueCertificate)
		}

		if h := cfg.PaymentHandler; h != nil {
			protected.POST("/payments/refund", h.RequestRefund)
			protected.GET("/payments/user/history", h.History)
			protected.GET("/payments/:id", h.GetPayment)
		}

		if h := cfg.LessonHandler; h != nil {
			protected.GET("/lessons/:id", h.GetLesson)
			protected.POST("/lessons/:id/complete", h.MarkComplete)
			protected.POST("/lessons/:id/progress", h.RecordVideoProgress)
			protected.POST("/lessons/:id/quiz", h.SubmitQuiz)
			protected.POST("/lessons/:id/assignment", h.SubmitAssignment)
		}
	}

	creator := protected.Group("/creator")
	creator.Use(httpMW.RequireCreator())
	if h := cfg.CreatorHandler; h != nil {
		creator.POST("/courses", h.CreateCourse)
		creator.GET("/courses", h.ListCourses)
		creator.PUT("/courses/:id", h.UpdateCourse)
		creator.POST("/courses/:id/publish", h.PublishCourse)
		creator.POST("/courses/:id/modules", h.AddModule)
		creator.GET("/courses/:id/students", h.CourseStudents)
		creator.PUT("/modules/:id", h.UpdateModule)
		creator.DELETE("/modules/:id", h.DeleteModule)
		creator.POST("/modules/:id/lessons", h.AddLesson)
		creator.PUT("/lessons/:id", h.UpdateLesson)
		creator.DELETE("/lessons/:id", h.DeleteLesson)
		creator.GET("/earnings", h.Earnings)
	}

	admin := protected.Group("/admin")
	admin.Use(httpMW.RequireAdmin())
	if h := cfg.AdminHandler; h != nil {
		admin.PUT("/courses/:id/approve", h.ApproveCourse)
		admin.POST("/courses/:id/recount", h.RecountCourse)
		admin.GET("/payments", h.ListPayments)
		admin.POST("/payments/:id/refund", h.CompleteRefund)
		admin.POST("/payouts", h.ProcessPayouts)
		admin.GET("/analytics", h.Analytics)
	}

	return r
}
