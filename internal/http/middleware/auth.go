package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

// RequireAuth rejects requests without a valid bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		rd := ctxutil.GetRequestData(ctx)
		if rd == nil || rd.UserID == uuid.Nil {
			response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through anonymously.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearerToken(c); tokenString != "" {
			if ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString); err == nil {
				c.Request = c.Request.WithContext(ctx)
			} else {
				am.log.Debug("optional token ignored", "error", err)
			}
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(allowed func(*ctxutil.RequestData) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil || !allowed(rd) {
			response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("insufficient role"))
			return
		}
		c.Next()
	}
}

func RequireCreator() gin.HandlerFunc {
	return RequireRole(func(rd *ctxutil.RequestData) bool { return rd.IsCreator() })
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRole(func(rd *ctxutil.RequestData) bool { return rd.IsAdmin() })
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
