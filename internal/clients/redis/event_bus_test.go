package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

func TestNoopEventBus(t *testing.T) {
	bus := NewNoopEventBus()
	if err := bus.Publish(context.Background(), events.New(events.EnrollmentCreated, uuid.New(), uuid.New(), nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewEventBusRequiresClient(t *testing.T) {
	if _, err := NewEventBus(logger.Nop(), nil, "x"); err == nil {
		t.Fatalf("expected error without client")
	}
	if (Config{}).Enabled() {
		t.Fatalf("empty config should be disabled")
	}
}

func TestEventBusRoundTrip(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := NewClient(ctx, Config{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	bus, err := NewEventBus(logger.Nop(), rdb, "coursemarket.test."+uuid.NewString())
	if err != nil {
		t.Fatalf("NewEventBus: %v", err)
	}
	defer bus.Close()

	got := make(chan events.Event, 1)
	if err := bus.(*eventBus).Subscribe(ctx, func(ev events.Event) { got <- ev }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sent := events.New(events.CertificateIssued, uuid.New(), uuid.New(), map[string]any{"certificate_number": "CERT-1"})
	if err := bus.Publish(ctx, sent); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case ev := <-got:
		if ev.ID != sent.ID || ev.Type != events.CertificateIssued {
			t.Fatalf("event: want=%+v got=%+v", sent, ev)
		}
	case <-ctx.Done():
		t.Fatalf("no event received")
	}
}
