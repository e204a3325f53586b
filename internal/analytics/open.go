package analytics

import (
	"errors"
	"fmt"

	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/redisclient"
)

// Sink kinds accepted by Open.
const (
	KindNone  = "none"
	KindLog   = "log"
	KindRedis = "redis"
)

// ErrUnknownSink is returned by Open for an unsupported sink kind.
var ErrUnknownSink = errors.New("unknown analytics sink")

const defaultBufferSize = 1024

// Config selects the analytics sink.
type Config struct {
	Sink       string             `mapstructure:"sink"`
	BufferSize int                `mapstructure:"bufferSize"`
	Redis      redisclient.Config `mapstructure:"redis"`
}

// Open builds and starts the sink described by cfg. The returned stop
// function flushes pending events and releases resources; it is never nil.
func Open(cfg Config, log logger.Logger) (Sink, func(), error) {
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}

	switch cfg.Sink {
	case "", KindNone:
		return Nop{}, func() {}, nil

	case KindLog:
		b := NewBuffered(size, NewLogWriter(log), log)
		b.Start()
		return b, b.Stop, nil

	case KindRedis:
		client, err := redisclient.New(cfg.Redis)
		if err != nil {
			return nil, func() {}, err
		}
		b := NewBuffered(size, NewRedisWriter(client, cfg.Redis.Channel), log)
		b.Start()
		return b, func() {
			b.Stop()
			client.Close()
		}, nil

	default:
		return nil, func() {}, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.Sink)
	}
}
