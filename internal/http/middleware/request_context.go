package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// Recover turns panics into a 500 error envelope.
func Recover(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		fields := []interface{}{"panic", recovered, "path", c.Request.URL.Path}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			fields = append(fields, "request_id", td.RequestID)
		}
		if log != nil {
			log.Error("panic recovered", fields...)
		}
		response.RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal server error"))
	})
}
