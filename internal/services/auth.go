package services

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// JWTClaims are issued by the identity service; only the subject is trusted
// here, the role is always read from the user row.
type JWTClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey string
}

func NewAuthService(log *logger.Logger, userRepo repos.UserRepo, jwtSecretKey string) AuthService {
	return &authService{
		log:          log.With("service", "AuthService"),
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
	}
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("missing token")
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return ctx, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid user id in token: %w", err)
	}
	user, err := as.userRepo.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		as.log.Warn("Principal lookup failed", "user_id", userID, "error", err)
		return ctx, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return ctx, fmt.Errorf("unknown user")
	}
	rd := &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      user.ID,
		Role:        user.Role,
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}
