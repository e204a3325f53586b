// Package prefs persists reader preference profiles in a key-value store and
// applies interaction events to them.
package prefs

import (
	"context"
	"sync"
)

// KV is the string key-value store profiles are persisted in.
type KV interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Watcher is implemented by stores that can report keys changed by another
// writer (another process, another tab).
type Watcher interface {
	// Watch delivers changed keys until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan string, error)
}

// MemoryKV is an in-process KV. Every Set is announced to watchers.
type MemoryKV struct {
	mu       sync.RWMutex
	data     map[string]string
	watchers []chan string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	for _, w := range m.watchers {
		select {
		case w <- key:
		default:
		}
	}
	return nil
}

// Watch implements Watcher.
func (m *MemoryKV) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, watchBuffer)

	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		for i, w := range m.watchers {
			if w == ch {
				m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
				break
			}
		}
		close(ch)
		m.mu.Unlock()
	}()

	return ch, nil
}

// watchBuffer is the number of change notifications queued per watcher
// before further ones are dropped.
const watchBuffer = 16
