package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is used when no change channel is configured.
const DefaultRedisChannel = "readnext:prefs:changed"

// RedisKV stores keys as plain Redis strings and announces every write on a
// pub/sub channel.
type RedisKV struct {
	client  *redis.Client
	channel string
}

// NewRedisKV wraps client. An empty channel selects DefaultRedisChannel.
func NewRedisKV(client *redis.Client, channel string) *RedisKV {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisKV{client: client, channel: channel}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	if err := r.client.Publish(ctx, r.channel, key).Err(); err != nil {
		return fmt.Errorf("failed to announce key %s: %w", key, err)
	}
	return nil
}

// Watch subscribes to the change channel.
func (r *RedisKV) Watch(ctx context.Context) (<-chan string, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	out := make(chan string, watchBuffer)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}
