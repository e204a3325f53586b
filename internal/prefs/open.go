package prefs

import (
	"errors"
	"fmt"

	"github.com/Bitlatte/readnext/internal/redisclient"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Config selects and configures the KV behind profile stores.
type Config struct {
	Driver string `mapstructure:"driver"`
	// Path is the directory for the file driver and the database file for
	// the sqlite driver.
	Path  string             `mapstructure:"path"`
	Redis redisclient.Config `mapstructure:"redis"`
}

// Open builds the KV described by cfg. The returned close function releases
// the underlying resources and is never nil.
func Open(cfg Config) (KV, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryKV(), noop, nil

	case DriverFile:
		kv, err := NewFileKV(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return kv, noop, nil

	case DriverSQLite:
		kv, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return kv, kv.Close, nil

	case DriverRedis:
		client, err := redisclient.New(cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		kv := NewRedisKV(client, cfg.Redis.Channel)
		return kv, kv.Close, nil

	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
