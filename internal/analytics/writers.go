package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Bitlatte/readnext/internal/logger"
)

// DefaultRedisChannel is the pub/sub channel RedisWriter publishes on when
// none is configured.
const DefaultRedisChannel = "readnext:analytics"

// LogWriter writes each event as a structured log line.
type LogWriter struct {
	log logger.Logger
}

// NewLogWriter returns a LogWriter logging at info level through log.
func NewLogWriter(log logger.Logger) *LogWriter {
	return &LogWriter{log: log}
}

func (w *LogWriter) Write(_ context.Context, e Event) error {
	w.log.Info("Analytics event",
		logger.String("event", e.Name),
		logger.Any("properties", e.Properties),
	)
	return nil
}

// RedisWriter publishes each event as JSON on a Redis channel.
type RedisWriter struct {
	client  *redis.Client
	channel string
}

// NewRedisWriter returns a RedisWriter. An empty channel selects
// DefaultRedisChannel.
func NewRedisWriter(client *redis.Client, channel string) *RedisWriter {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisWriter{client: client, channel: channel}
}

func (w *RedisWriter) Write(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", e.Name, err)
	}
	if err := w.client.Publish(ctx, w.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", e.Name, err)
	}
	return nil
}
