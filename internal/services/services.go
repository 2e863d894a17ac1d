package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// Clock returns the current time; tests pin it.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

func clockOrSystem(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// EventPublisher is the slice of the event bus services depend on.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

func fail(code domainagg.ErrorCode, op, msg string) error {
	return domainagg.NewError(code, op, msg, nil)
}

// requirePrincipal returns the authenticated caller or a forbidden error.
func requirePrincipal(ctx context.Context, op string) (*ctxutil.RequestData, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fail(domainagg.CodeForbidden, op, "authentication required")
	}
	return rd, nil
}

func requireRole(ctx context.Context, op string, allowed func(*ctxutil.RequestData) bool, msg string) (*ctxutil.RequestData, error) {
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	if !allowed(rd) {
		return nil, fail(domainagg.CodeForbidden, op, msg)
	}
	return rd, nil
}

// internalErr keeps domain errors intact and marks anything else internal.
func internalErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if domainagg.CodeOf(err) != "" {
		return err
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}

// publish delivers ev best-effort; a failed publish never fails the request.
func publish(ctx context.Context, bus EventPublisher, log *logger.Logger, ev events.Event) {
	if bus == nil {
		return
	}
	if err := bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		observability.Current().IncEventPublished(ev.Type, "error")
		log.Warn("Event publish failed", "event", ev.Type, "error", err)
		return
	}
	observability.Current().IncEventPublished(ev.Type, "ok")
}
