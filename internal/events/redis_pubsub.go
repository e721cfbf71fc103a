package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "shift:"
	publishTimeout = 5 * time.Second
)

// Recording lifecycle events.
const (
	EventRecordingStarted   = "recording_started"
	EventRecordingCompleted = "recording_completed"
	EventRecordingFailed    = "recording_failed"
)

// Message is the payload published on a shift channel.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// Channel returns the Redis channel for a shift.
func Channel(shiftID uuid.UUID) string {
	return channelPrefix + shiftID.String()
}

// RedisPubSub publishes recording lifecycle events on per-shift Redis channels.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a publisher.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Publish sends data as event on the shift's channel. Delivery is best effort: subscribers
// that are not connected miss the message.
func (r *RedisPubSub) Publish(ctx context.Context, shiftID uuid.UUID, event string, data any) error {
	body, err := encode(event, data, time.Now())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, Channel(shiftID), body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	r.logger.Debug("event published", zap.String("channel", Channel(shiftID)), zap.String("event", event))
	return nil
}

func encode(event string, data any, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event, err)
	}
	return json.Marshal(Message{Event: event, Data: raw, At: at.Unix()})
}
