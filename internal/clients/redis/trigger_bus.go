package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
)

// TriggerBus wakes the reconciliation loop across processes: the API server
// publishes after committing media writes, and every worker subscribed to the
// channel reconciles without waiting out the ticker interval.
type TriggerBus interface {
	Publish(ctx context.Context, reason string) error
	StartForwarder(ctx context.Context, onTrigger func(reason string)) error
	Close() error
}

type triggerBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewTriggerBus(log *logger.Logger, addr, channel string) (TriggerBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if strings.TrimSpace(channel) == "" {
		channel = "intelligence:reconcile"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &triggerBus{
		log:     log.With("service", "RedisTriggerBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *triggerBus) Publish(ctx context.Context, reason string) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("trigger bus not initialized")
	}
	return b.rdb.Publish(ctx, b.channel, reason).Err()
}

func (b *triggerBus) StartForwarder(ctx context.Context, onTrigger func(reason string)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("trigger bus not initialized")
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
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.log.Debug("reconcile trigger received", "reason", msg.Payload)
				onTrigger(msg.Payload)
			}
		}
	}()
	return nil
}

func (b *triggerBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
