package repository

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
)

const defaultInvalidationChannel = "pricing_config:invalidate"

// Ensure RedisInvalidationBus implements Broadcaster
var _ Broadcaster = (*RedisInvalidationBus)(nil)

// RedisInvalidationBus fans cache invalidations out to every service instance
// over Redis pub/sub.
type RedisInvalidationBus struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *logging.Logger
}

// NewRedisInvalidationBus creates a new Redis-based invalidation bus.
func NewRedisInvalidationBus(cfg config.RedisConfig, logger *logging.Logger) *RedisInvalidationBus {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	channel := cfg.Channel
	if channel == "" {
		channel = defaultInvalidationChannel
	}

	return &RedisInvalidationBus{
		client:  client,
		channel: channel,
		origin:  instanceID(),
		logger:  logger,
	}
}

// PublishInvalidation announces that pricing configuration changed.
func (b *RedisInvalidationBus) PublishInvalidation(ctx context.Context) error {
	if err := b.client.Publish(ctx, b.channel, b.origin).Err(); err != nil {
		b.logger.Error("Cache invalidation publish error", logging.Fields{
			"channel": b.channel,
			"error":   err.Error(),
		})
		return err
	}

	b.logger.Debug("Cache invalidation published", logging.Fields{"channel": b.channel})
	return nil
}

// Subscribe calls onInvalidate for every invalidation raised by another
// instance until ctx is done.
func (b *RedisInvalidationBus) Subscribe(ctx context.Context, onInvalidate func()) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("Subscribed to cache invalidations", logging.Fields{"channel": b.channel})

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if shouldApply(msg.Payload, b.origin) {
				b.logger.Debug("Cache invalidation received", logging.Fields{"origin": msg.Payload})
				onInvalidate()
			}
		}
	}
}

// Ping checks connectivity for the readiness endpoint.
func (b *RedisInvalidationBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (b *RedisInvalidationBus) Close() error {
	return b.client.Close()
}

// shouldApply skips messages this instance published; it already dropped its
// own snapshots before broadcasting.
func shouldApply(origin, self string) bool {
	return origin != self
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
