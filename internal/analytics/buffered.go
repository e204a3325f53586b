package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/Bitlatte/readnext/internal/logger"
)

// writeTimeout bounds a single Writer call.
const writeTimeout = 5 * time.Second

// Writer delivers events somewhere durable or observable.
type Writer interface {
	Write(ctx context.Context, e Event) error
}

// Buffered is a Sink backed by a bounded channel. Emit never blocks: when the
// channel is full the event is dropped and counted. A single goroutine
// drains the channel into the Writer.
type Buffered struct {
	events chan Event
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	// mu orders Emit against Stop: once Stop holds it, no Emit can queue an
	// event the drain loop would miss.
	mu      sync.RWMutex
	stopped bool

	writer Writer
	log    logger.Logger
	now    func() time.Time
}

// NewBuffered returns a Buffered sink with room for capacity pending events.
func NewBuffered(capacity int, writer Writer, log logger.Logger) *Buffered {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffered{
		events: make(chan Event, capacity),
		closed: make(chan struct{}),
		writer: writer,
		log:    log,
		now:    time.Now,
	}
}

// Emit implements Sink.
func (b *Buffered) Emit(name string, props map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		eventsDropped.WithLabelValues(name).Inc()
		return
	}

	e := Event{Name: name, Properties: props, EmittedAt: b.now()}
	select {
	case b.events <- e:
		eventsEmitted.WithLabelValues(name).Inc()
	default:
		eventsDropped.WithLabelValues(name).Inc()
	}
}

// Len returns the number of events waiting to be written.
func (b *Buffered) Len() int {
	return len(b.events)
}

// Start launches the drain goroutine.
func (b *Buffered) Start() {
	b.wg.Add(1)
	go b.drainLoop()
}

// Stop stops accepting events, writes what is already buffered and waits
// for the drain goroutine. Safe to call more than once.
func (b *Buffered) Stop() {
	b.once.Do(func() {
		b.mu.Lock()
		b.stopped = true
		close(b.closed)
		b.mu.Unlock()
	})
	b.wg.Wait()
}

func (b *Buffered) drainLoop() {
	defer b.wg.Done()

	for {
		select {
		case e := <-b.events:
			b.write(e)
		case <-b.closed:
			for {
				select {
				case e := <-b.events:
					b.write(e)
				default:
					return
				}
			}
		}
	}
}

func (b *Buffered) write(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := b.writer.Write(ctx, e); err != nil {
		writeFailures.Inc()
		b.log.Warn("Failed to write analytics event",
			logger.String("event", e.Name),
			logger.Error(err),
		)
	}
}
