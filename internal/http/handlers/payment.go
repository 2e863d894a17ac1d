package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/midtrans"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type PaymentHandler struct {
	log            *logger.Logger
	paymentService services.PaymentService
}

func NewPaymentHandler(log *logger.Logger, paymentService services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		log:            log.With("handler", "PaymentHandler"),
		paymentService: paymentService,
	}
}

// GET /api/payments/verify?session_id=
// The gateway finish redirect carries order_id, so both names are accepted.
func (h *PaymentHandler) Verify(c *gin.Context) {
	orderID := strings.TrimSpace(c.Query("session_id"))
	if orderID == "" {
		orderID = strings.TrimSpace(c.Query("order_id"))
	}
	if orderID == "" {
		response.RespondError(c, http.StatusBadRequest, "validation", errors.New("session_id is required"))
		return
	}
	res, err := h.paymentService.Verify(c.Request.Context(), orderID)
	if err != nil {
		fail(c, h.log, "VerifyPayment", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var n midtrans.Notification
	if !bindJSON(c, &n) {
		return
	}
	res, err := h.paymentService.HandleWebhook(c.Request.Context(), n)
	if err != nil {
		fail(c, h.log, "PaymentWebhook", err)
		return
	}
	response.RespondOK(c, res)
}

type refundRequest struct {
	PaymentID uuid.UUID `json:"payment_id" binding:"required"`
	Reason    string    `json:"reason"`
}

// POST /api/payments/refund
func (h *PaymentHandler) RequestRefund(c *gin.Context) {
	var req refundRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.paymentService.RequestRefund(c.Request.Context(), req.PaymentID, req.Reason)
	if err != nil {
		fail(c, h.log, "RequestRefund", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Refund request submitted", "payment": payment})
}

// GET /api/payments/user/history
func (h *PaymentHandler) History(c *gin.Context) {
	list, err := h.paymentService.History(c.Request.Context())
	if err != nil {
		fail(c, h.log, "PaymentHistory", err)
		return
	}
	response.RespondOK(c, gin.H{"payments": list})
}

// GET /api/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.paymentService.GetPayment(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "GetPayment", err)
		return
	}
	response.RespondOK(c, gin.H{"payment": payment})
}
