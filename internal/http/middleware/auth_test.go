package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

const testSecret = "middleware-secret"

func mint(t *testing.T, subject, secret string, ttl time.Duration) string {
	t.Helper()
	claims := services.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := repotest.DB(t)
	log := logger.Nop()
	am := NewAuthMiddleware(log, services.NewAuthService(log, repos.NewUserRepo(db, log), testSecret))

	whoami := func(c *gin.Context) {
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			c.String(http.StatusOK, rd.Role)
			return
		}
		c.String(http.StatusOK, "anonymous")
	}
	r := gin.New()
	r.GET("/private", am.RequireAuth(), whoami)
	r.GET("/optional", am.OptionalAuth(), whoami)
	r.GET("/admin", am.RequireAuth(), RequireAdmin(), whoami)
	r.GET("/creator", am.RequireAuth(), RequireCreator(), whoami)

	student := repotest.SeedUser(t, context.Background(), db, ctxutil.RoleStudent)
	admin := repotest.SeedUser(t, context.Background(), db, ctxutil.RoleAdmin)
	studentToken := mint(t, student.ID.String(), testSecret, time.Hour)
	adminToken := mint(t, admin.ID.String(), testSecret, time.Hour)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
		body   string
	}{
		{"missing token", "/private", "", http.StatusUnauthorized, ""},
		{"wrong secret", "/private", mint(t, student.ID.String(), "other", time.Hour), http.StatusUnauthorized, ""},
		{"expired", "/private", mint(t, student.ID.String(), testSecret, -time.Minute), http.StatusUnauthorized, ""},
		{"unknown user", "/private", mint(t, "4b0c7a1e-0000-4000-8000-000000000000", testSecret, time.Hour), http.StatusUnauthorized, ""},
		{"student", "/private", studentToken, http.StatusOK, ctxutil.RoleStudent},
		{"optional anonymous", "/optional", "", http.StatusOK, "anonymous"},
		{"optional bad token", "/optional", "garbage", http.StatusOK, "anonymous"},
		{"optional student", "/optional", studentToken, http.StatusOK, ctxutil.RoleStudent},
		{"student on admin route", "/admin", studentToken, http.StatusForbidden, ""},
		{"student on creator route", "/creator", studentToken, http.StatusForbidden, ""},
		{"admin on admin route", "/admin", adminToken, http.StatusOK, ""},
		{"admin on creator route", "/creator", adminToken, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(r, tc.path, tc.token)
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Fatalf("body: want=%q got=%q", tc.body, rec.Body.String())
			}
		})
	}
}
