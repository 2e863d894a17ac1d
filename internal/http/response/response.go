package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError maps err onto its HTTP status and writes the error envelope.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.FromError(err)
	if ae == nil {
		ae = apierr.New(http.StatusInternalServerError, "internal", nil)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(ae.Status, ErrorEnvelope{
		Error: APIError{
			Message: ae.Message(),
			Code:    ae.Code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
