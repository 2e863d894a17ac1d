package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type CertificateHandler struct {
	log                *logger.Logger
	certificateService services.CertificateService
}

func NewCertificateHandler(log *logger.Logger, certificateService services.CertificateService) *CertificateHandler {
	return &CertificateHandler{
		log:                log.With("handler", "CertificateHandler"),
		certificateService: certificateService,
	}
}

// GET /api/certificates/:number
func (h *CertificateHandler) GetCertificate(c *gin.Context) {
	view, err := h.certificateService.GetCertificate(c.Request.Context(), c.Param("number"))
	if err != nil {
		fail(c, h.log, "GetCertificate", err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/certificates/:number/image
func (h *CertificateHandler) RenderCertificate(c *gin.Context) {
	png, err := h.certificateService.RenderCertificate(c.Request.Context(), c.Param("number"))
	if err != nil {
		fail(c, h.log, "RenderCertificate", err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}
