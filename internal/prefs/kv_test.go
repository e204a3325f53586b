package prefs_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bitlatte/readnext/internal/prefs"
	"github.com/Bitlatte/readnext/internal/redisclient"
)

const visitorKey = "blog_preferences:visitor/1"

func newRedisKV(t *testing.T) *prefs.RedisKV {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return prefs.NewRedisKV(client, "")
}

func kvDrivers(t *testing.T) map[string]prefs.KV {
	t.Helper()

	file, err := prefs.NewFileKV(t.TempDir())
	require.NoError(t, err)

	sqlite, err := prefs.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]prefs.KV{
		"memory": prefs.NewMemoryKV(),
		"file":   file,
		"sqlite": sqlite,
		"redis":  newRedisKV(t),
	}
}

func TestKV_GetSet(t *testing.T) {
	for name, kv := range kvDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := kv.Get(ctx, visitorKey)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, kv.Set(ctx, visitorKey, `{"bookmarks":["a"]}`))
			require.NoError(t, kv.Set(ctx, visitorKey, `{"bookmarks":["b"]}`))

			v, ok, err := kv.Get(ctx, visitorKey)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"bookmarks":["b"]}`, v)
		})
	}
}

func TestKV_WatchReportsKey(t *testing.T) {
	file, err := prefs.NewFileKV(t.TempDir())
	require.NoError(t, err)

	watchers := map[string]interface {
		prefs.KV
		prefs.Watcher
	}{
		"memory": prefs.NewMemoryKV(),
		"file":   file,
		"redis":  newRedisKV(t),
	}

	for name, kv := range watchers {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			changes, err := kv.Watch(ctx)
			require.NoError(t, err)

			require.NoError(t, kv.Set(ctx, visitorKey, "{}"))

			deadline := time.After(3 * time.Second)
			for {
				select {
				case key := <-changes:
					if key == visitorKey {
						return
					}
				case <-deadline:
					t.Fatalf("%s: change for %q not reported", name, visitorKey)
				}
			}
		})
	}
}

func TestOpen_Drivers(t *testing.T) {
	kv, closeFn, err := prefs.Open(prefs.Config{Driver: prefs.DriverFile, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &prefs.FileKV{}, kv)
	assert.NoError(t, closeFn())

	kv, closeFn, err = prefs.Open(prefs.Config{Driver: prefs.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &prefs.SQLiteKV{}, kv)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	kv, closeFn, err = prefs.Open(prefs.Config{Driver: prefs.DriverRedis, Redis: redisclient.Config{Address: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &prefs.RedisKV{}, kv)
	assert.NoError(t, closeFn())

	kv, _, err = prefs.Open(prefs.Config{})
	require.NoError(t, err)
	assert.IsType(t, &prefs.MemoryKV{}, kv)

	_, _, err = prefs.Open(prefs.Config{Driver: "etcd"})
	assert.ErrorIs(t, err, prefs.ErrUnknownDriver)

	_, _, err = prefs.Open(prefs.Config{Driver: prefs.DriverRedis})
	assert.ErrorIs(t, err, redisclient.ErrEmptyAddress)
}

func TestApply_HistoryLimitOption(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, prefs.NewMemoryKV(), prefs.WithHistoryLimit(2))

	for _, slug := range []string{"a", "b", "c"} {
		_, err := s.RecordView(ctx, slug, "")
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"c", "b"}, s.Profile(ctx).ReadingHistory)
}
