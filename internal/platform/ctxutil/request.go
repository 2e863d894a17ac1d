package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

const (
	RoleStudent = "student"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// RequestData is the authenticated principal attached by the auth middleware.
type RequestData struct {
	TokenString string
	UserID      uuid.UUID
	Role        string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

func (rd *RequestData) IsAdmin() bool {
	return rd != nil && rd.Role == RoleAdmin
}

func (rd *RequestData) IsCreator() bool {
	return rd != nil && (rd.Role == RoleCreator || rd.Role == RoleAdmin)
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
