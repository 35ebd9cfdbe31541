package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/pkg/logger"
)

// DefaultRedisChannel is used when no channel is configured
const DefaultRedisChannel = "stagereport:notifications"

// Deliverer hands a message to local connections
type Deliverer interface {
	Deliver(userID uint, msg *PushMessage) int
}

// RedisBroker publishes push messages on a Redis channel and delivers every
// message received from it to the local hub, so a user connected to any
// instance gets messages produced on all instances.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   Deliverer

	sub    *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type envelope struct {
	UserID  uint         `json:"user_id"`
	Message *PushMessage `json:"message"`
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed connecting to redis: %w", err)
	}
	return client, nil
}

// NewRedisBroker creates a broker; call Start before publishing
func NewRedisBroker(client *redis.Client, channel string, local Deliverer) *RedisBroker {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBroker{client: client, channel: channel, local: local}
}

// Start subscribes to the channel and begins delivering messages
func (b *RedisBroker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.sub = sub
	b.cancel = cancel

	b.wg.Add(1)
	go b.loop(ctx, sub.Channel())

	logger.Info("Redis push fan-out started", zap.String("channel", b.channel))
	return nil
}

func (b *RedisBroker) loop(ctx context.Context, ch <-chan *redis.Message) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil || env.Message == nil {
				logger.Warn("Discarding malformed push message", zap.String("channel", m.Channel))
				continue
			}
			b.local.Deliver(env.UserID, env.Message)
		}
	}
}

// Publish sends msg to all instances, including this one
func (b *RedisBroker) Publish(ctx context.Context, userID uint, msg *PushMessage) error {
	data, err := json.Marshal(envelope{UserID: userID, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Close stops delivery and releases the subscription
func (b *RedisBroker) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	var err error
	if b.sub != nil {
		err = b.sub.Close()
	}
	b.wg.Wait()
	return err
}
