package analytics_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bitlatte/readnext/internal/analytics"
	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/redisclient"
)

func TestRedisWriter_PublishesJSON(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sub := client.Subscribe(ctx, analytics.DefaultRedisChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	w := analytics.NewRedisWriter(client, "")
	require.NoError(t, w.Write(ctx, analytics.Event{
		Name:       "blog_view",
		Properties: map[string]any{"slug": "hello"},
		EmittedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got analytics.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "blog_view", got.Name)
	assert.Equal(t, "hello", got.Properties["slug"])
}

func TestOpen_RedisSink(t *testing.T) {
	mr := miniredis.RunT(t)

	sink, stop, err := analytics.Open(analytics.Config{
		Sink:  analytics.KindRedis,
		Redis: redisclient.Config{Address: mr.Addr(), Channel: "events"},
	}, logger.NewNop())
	require.NoError(t, err)

	sink.Emit("blog_share", map[string]any{"slug": "a"})
	stop()
}

func TestLogWriter_NeverFails(t *testing.T) {
	w := analytics.NewLogWriter(logger.NewNop())
	assert.NoError(t, w.Write(context.Background(), analytics.Event{Name: "blog_view"}))
}

func TestSinkFunc(t *testing.T) {
	var got string
	analytics.SinkFunc(func(name string, _ map[string]any) { got = name }).Emit("blog_view", nil)
	assert.Equal(t, "blog_view", got)
}
