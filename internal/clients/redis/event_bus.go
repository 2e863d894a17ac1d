package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/envutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

func ConfigFromEnv() Config {
	return Config{
		Addr:     envutil.String("REDIS_ADDR", ""),
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
		Channel:  envutil.String("REDIS_CHANNEL", "coursemarket.events"),
	}
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

// NewClient dials and pings redis.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// EventBus fans marketplace events out to other processes.
type EventBus interface {
	Publish(ctx context.Context, ev events.Event) error
	Close() error
}

type eventBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewEventBus(log *logger.Logger, rdb goredis.UniversalClient, channel string) (EventBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if strings.TrimSpace(channel) == "" {
		channel = "coursemarket.events"
	}
	return &eventBus{
		log:     log.With("service", "RedisEventBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *eventBus) Publish(ctx context.Context, ev events.Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe delivers decoded events until ctx ends.
func (b *eventBus) Subscribe(ctx context.Context, onEvent func(events.Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev events.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *eventBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

type noopBus struct{}

// NewNoopEventBus drops every event; used when REDIS_ADDR is unset.
func NewNoopEventBus() EventBus { return noopBus{} }

func (noopBus) Publish(context.Context, events.Event) error { return nil }
func (noopBus) Close() error { return nil }
