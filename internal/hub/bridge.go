package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultBridgeChannel is the pub/sub channel broadcasts travel on.
const DefaultBridgeChannel = "sockethub:broadcast"

// Bridge fans broadcasts out across server instances through redis
// pub/sub. Each instance tags what it publishes with its own random ID and
// ignores its own echoes, so a message reaches every local set exactly once.
type Bridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     *slog.Logger
}

type bridgeMessage struct {
	Origin string         `json:"origin"`
	Type   string         `json:"type"`
	Data   map[string]any `json:"data"`
}

// NewBridge connects to redis and verifies the connection before returning.
func NewBridge(redisAddr, channel string, logger *slog.Logger) (*Bridge, error) {
	if channel == "" {
		channel = DefaultBridgeChannel
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Bridge{
		client:     rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
		logger:     logger,
	}, nil
}

// Publish pushes a broadcast to the channel for sibling instances.
func (b *Bridge) Publish(ctx context.Context, msgType string, data any) error {
	payload, err := json.Marshal(map[string]any{
		"origin": b.instanceID,
		"type":   msgType,
		"data":   data,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run subscribes and re-broadcasts sibling messages into the local
// registry until the context is cancelled.
func (b *Bridge) Run(ctx context.Context, reg *Registry) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := decodeBridgeMessage([]byte(m.Payload))
			if err != nil {
				b.logger.Warn("bridge_bad_payload", "error", err.Error())
				continue
			}
			if msg.Origin == b.instanceID {
				continue // our own publish coming back around
			}
			if err := reg.Broadcast(msg.Type, msg.Data); err != nil {
				b.logger.Warn("bridge_rebroadcast_failed", "error", err.Error())
			}
		}
	}
}

// Close releases the redis client.
func (b *Bridge) Close() error {
	return b.client.Close()
}

func decodeBridgeMessage(payload []byte) (*bridgeMessage, error) {
	var msg bridgeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	if msg.Origin == "" || msg.Type == "" || msg.Data == nil {
		return nil, fmt.Errorf("incomplete bridge message")
	}
	return &msg, nil
}
