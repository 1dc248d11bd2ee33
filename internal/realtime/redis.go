// Package realtime pushes stored notifications to connected clients over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const channelPrefix = "notifications:"

// Channel is the pub/sub channel carrying one user's notifications.
func Channel(userID string) string {
	return channelPrefix + userID
}

// RedisHub publishes notifications per recipient and lets a client follow its own channel.
type RedisHub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisHub creates a RedisHub
func NewRedisHub(client *redis.Client, logger *zap.Logger) *RedisHub {
	return &RedisHub{client: client, logger: logger}
}

// Publish serializes n and publishes it on the recipient's channel.
func (h *RedisHub) Publish(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return h.client.Publish(ctx, Channel(n.RecipientID), data).Err()
}

// Subscribe calls handler for every notification published to userID until
// ctx is done. It blocks.
func (h *RedisHub) Subscribe(ctx context.Context, userID string, handler func(models.Notification)) error {
	sub := h.client.Subscribe(ctx, Channel(userID))
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var n models.Notification
			if err := json.Unmarshal([]byte(m.Payload), &n); err != nil {
				h.logger.Warn("dropping malformed realtime payload", zap.String("channel", m.Channel), zap.Error(err))
				continue
			}
			handler(n)
		case <-ctx.Done():
			return nil
		}
	}
}
