package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type EnrollmentHandler struct {
	log                *logger.Logger
	enrollmentService  services.EnrollmentService
	certificateService services.CertificateService
}

func NewEnrollmentHandler(log *logger.Logger, enrollmentService services.EnrollmentService, certificateService services.CertificateService) *EnrollmentHandler {
	return &EnrollmentHandler{
		log:                log.With("handler", "EnrollmentHandler"),
		enrollmentService:  enrollmentService,
		certificateService: certificateService,
	}
}

// POST /api/courses/:id/enroll
// Free courses enroll directly (201); paid courses return a checkout (200).
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.enrollmentService.Enroll(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "Enroll", err)
		return
	}
	if out.Checkout != nil {
		response.RespondOK(c, out.Checkout)
		return
	}
	response.RespondCreated(c, gin.H{"enrollment": out.Enrollment})
}

// GET /api/enrollments/me
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	list, err := h.enrollmentService.ListMyEnrollments(c.Request.Context())
	if err != nil {
		fail(c, h.log, "ListMyEnrollments", err)
		return
	}
	response.RespondOK(c, gin.H{"enrollments": list})
}

// GET /api/enrollments/:id
func (h *EnrollmentHandler) GetEnrollment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	enr, err := h.enrollmentService.GetEnrollment(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "GetEnrollment", err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": enr})
}

// GET /api/enrollments/course/:id
func (h *EnrollmentHandler) GetCourseContent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	content, err := h.enrollmentService.GetCourseContent(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "GetCourseContent", err)
		return
	}
	response.RespondOK(c, content)
}

// POST /api/enrollments/course/:id/certificate
func (h *EnrollmentHandler) IssueCertificate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.certificateService.Issue(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "IssueCertificate", err)
		return
	}
	payload := gin.H{"certificate": res.Certificate, "enrollment": res.Enrollment}
	if res.Created {
		response.RespondCreated(c, payload)
		return
	}
	response.RespondOK(c, payload)
}
