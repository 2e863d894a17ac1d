package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursemarket-backend/internal/clients/redis"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/midtrans"
	"github.com/yungbote/coursemarket-backend/internal/platform/sendgrid"
)

type Clients struct {
	Redis   *goredis.Client
	Bus     redis.EventBus
	Mail    sendgrid.Client
	Gateway midtrans.Gateway
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis event bus; noop when REDIS_ADDR is empty.
	var (
		rdb *goredis.Client
		bus = redis.NewNoopEventBus()
	)
	if cfg.Redis.Enabled() {
		c, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		b, err := redis.NewEventBus(log, c, cfg.Redis.Channel)
		if err != nil {
			_ = c.Close()
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		rdb, bus = c, b
	} else {
		log.Info("REDIS_ADDR not set; marketplace events are not published")
	}

	// SendGrid
	mail, err := sendgrid.New(log, cfg.SendGrid)
	if err != nil {
		_ = bus.Close()
		return Clients{}, fmt.Errorf("init sendgrid: %w", err)
	}

	// Midtrans
	gateway := midtrans.New(log, cfg.Midtrans)

	return Clients{
		Redis:   rdb,
		Bus:     bus,
		Mail:    mail,
		Gateway: gateway,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	// The redis bus owns the client connection.
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
}
