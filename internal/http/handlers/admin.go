package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type AdminHandler struct {
	log          *logger.Logger
	adminService services.AdminService
}

func NewAdminHandler(log *logger.Logger, adminService services.AdminService) *AdminHandler {
	return &AdminHandler{
		log:          log.With("handler", "AdminHandler"),
		adminService: adminService,
	}
}

type approveRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// PUT /api/admin/courses/:id/approve
func (h *AdminHandler) ApproveCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req approveRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.adminService.ApproveCourse(c.Request.Context(), id, *req.Approve)
	if err != nil {
		fail(c, h.log, "ApproveCourse", err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

// POST /api/admin/courses/:id/recount
func (h *AdminHandler) RecountCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	course, err := h.adminService.RecountCourse(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "RecountCourse", err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

// GET /api/admin/payments
func (h *AdminHandler) ListPayments(c *gin.Context) {
	creatorID, ok := queryUUID(c, "creator_id")
	if !ok {
		return
	}
	from, ok := queryTime(c, "date_from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "date_to")
	if !ok {
		return
	}
	page, err := h.adminService.ListPayments(c.Request.Context(), services.AdminPaymentFilter{
		Status:    c.Query("status"),
		CreatorID: creatorID,
		From:      from,
		To:        to,
		Sort:      c.Query("sort"),
		Page:      queryInt(c, "page", 1),
		Limit:     queryInt(c, "limit", 20),
	})
	if err != nil {
		fail(c, h.log, "ListPayments", err)
		return
	}
	response.RespondOK(c, page)
}

// POST /api/admin/payments/:id/refund
func (h *AdminHandler) CompleteRefund(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.adminService.CompleteRefund(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "CompleteRefund", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Refund completed", "payment": payment})
}

type payoutRequest struct {
	CreatorID uuid.UUID `json:"creator_id" binding:"required"`
}

// POST /api/admin/payouts
func (h *AdminHandler) ProcessPayouts(c *gin.Context) {
	var req payoutRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.adminService.ProcessPayouts(c.Request.Context(), req.CreatorID)
	if err != nil {
		fail(c, h.log, "ProcessPayouts", err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/admin/analytics
func (h *AdminHandler) Analytics(c *gin.Context) {
	a, err := h.adminService.GetAnalytics(c.Request.Context())
	if err != nil {
		fail(c, h.log, "GetAnalytics", err)
		return
	}
	response.RespondOK(c, a)
}
