package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bitlatte/readnext/internal/logger"
)

type captureWriter struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *captureWriter) Write(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return c.err
}

func (c *captureWriter) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Name
	}
	return out
}

func TestBuffered_DeliversInOrder(t *testing.T) {
	w := &captureWriter{}
	b := NewBuffered(10, w, logger.NewNop())
	b.Start()

	b.Emit("blog_view", map[string]any{"slug": "a"})
	b.Emit("blog_share", map[string]any{"slug": "a"})
	b.Stop()

	assert.Equal(t, []string{"blog_view", "blog_share"}, w.names())
	assert.Equal(t, "a", w.events[0].Properties["slug"])
	assert.False(t, w.events[0].EmittedAt.IsZero())
}

func TestBuffered_DropsWhenFull(t *testing.T) {
	w := &captureWriter{}
	b := NewBuffered(1, w, logger.NewNop())
	before := testutil.ToFloat64(eventsDropped.WithLabelValues("blog_full_test"))

	done := make(chan struct{})
	go func() {
		b.Emit("blog_full_test", nil)
		b.Emit("blog_full_test", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, before+1, testutil.ToFloat64(eventsDropped.WithLabelValues("blog_full_test")))

	b.Start()
	b.Stop()
	assert.Len(t, w.names(), 1)
}

func TestBuffered_EmitAfterStopIsDropped(t *testing.T) {
	w := &captureWriter{}
	b := NewBuffered(4, w, logger.NewNop())
	b.Start()
	b.Stop()
	b.Stop()

	b.Emit("blog_view", nil)

	assert.Empty(t, w.names())
	assert.Equal(t, 0, b.Len())
}

func TestBuffered_EveryAcceptedEventIsWrittenAcrossStop(t *testing.T) {
	const name = "blog_stop_race_test"
	w := &captureWriter{}
	b := NewBuffered(1000, w, logger.NewNop())
	accepted := testutil.ToFloat64(eventsEmitted.WithLabelValues(name))
	b.Start()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Emit(name, nil)
			}
		}()
	}
	b.Stop()
	wg.Wait()

	accepted = testutil.ToFloat64(eventsEmitted.WithLabelValues(name)) - accepted
	assert.Equal(t, int(accepted), len(w.names()))
	assert.Equal(t, 0, b.Len())
}

func TestBuffered_WriterErrorsAreSwallowed(t *testing.T) {
	w := &captureWriter{err: errors.New("sink down")}
	b := NewBuffered(4, w, logger.NewNop())
	before := testutil.ToFloat64(writeFailures)
	b.Start()

	b.Emit("blog_view", nil)
	b.Stop()

	require.Len(t, w.names(), 1)
	assert.Equal(t, before+1, testutil.ToFloat64(writeFailures))
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "blog_bookmark", EventName("bookmark"))
}

func TestOpen_Kinds(t *testing.T) {
	s, stop, err := Open(Config{}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)
	stop()

	s, stop, err = Open(Config{Sink: KindLog, BufferSize: 2}, logger.NewNop())
	require.NoError(t, err)
	s.Emit("blog_view", map[string]any{"slug": "a"})
	stop()

	_, _, err = Open(Config{Sink: "kafka"}, logger.NewNop())
	assert.ErrorIs(t, err, ErrUnknownSink)
}
