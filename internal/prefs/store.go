package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/model"
)

// ErrWatchUnsupported is returned by Store.Watch when the KV cannot report
// changes.
var ErrWatchUnsupported = errors.New("store does not support change notification")

// Store reads and updates one reader's profile. Persistence is best effort:
// reads fall back to an empty profile and failed writes are logged and
// dropped, so callers never see a storage error.
type Store struct {
	kv           KV
	log          logger.Logger
	key          string
	historyLimit int

	mu       sync.Mutex
	snapshot model.Profile
}

// Option customises a Store.
type Option func(*Store)

// WithKey sets the storage key. Default: model.PreferencesKey.
func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithHistoryLimit sets the reading history cap. Default: model.HistoryLimit.
func WithHistoryLimit(n int) Option { return func(s *Store) { s.historyLimit = n } }

// NewStore returns a Store persisting through kv.
func NewStore(kv KV, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		kv:           kv,
		log:          log,
		key:          model.PreferencesKey,
		historyLimit: model.HistoryLimit,
		snapshot:     model.NewProfile(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(logger.String("key", s.key))
	return s
}

// Key returns the storage key of this store.
func (s *Store) Key() string { return s.key }

// Profile reads the persisted profile. It never fails: a missing, unreadable
// or corrupt value yields an empty profile.
func (s *Store) Profile(ctx context.Context) model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Snapshot returns the profile as last read or written, without touching
// the KV.
func (s *Store) Snapshot() model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Record applies e to the persisted profile and writes it back whole. The
// updated profile is returned even when the write fails.
func (s *Store) Record(ctx context.Context, e Event) (model.Profile, error) {
	if err := e.Validate(); err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.load(ctx)
	Apply(&p, e, s.historyLimit)
	s.save(ctx, p)
	return p.Clone(), nil
}

// RecordView moves slug to the front of the reading history and remembers
// category as preferred.
func (s *Store) RecordView(ctx context.Context, slug, category string) (model.Profile, error) {
	return s.Record(ctx, Event{Action: ActionView, Slug: slug, Category: category})
}

// Bookmark adds or removes slug from the bookmarks.
func (s *Store) Bookmark(ctx context.Context, slug string, action BookmarkAction) (model.Profile, error) {
	return s.Record(ctx, Event{Action: ActionBookmark, Slug: slug, Bookmark: action})
}

// RecordScroll stores the latest scroll percentage and time on page for slug.
// Nil values leave the stored ones untouched.
func (s *Store) RecordScroll(ctx context.Context, slug string, percentage *float64, timeOnPageMs *int64) (model.Profile, error) {
	return s.Record(ctx, Event{Action: ActionScroll, Slug: slug, ScrollPercentage: percentage, TimeOnPage: timeOnPageMs})
}

// RecordShare counts a share of slug.
func (s *Store) RecordShare(ctx context.Context, slug, platform string) (model.Profile, error) {
	return s.Record(ctx, Event{Action: ActionShare, Slug: slug, Platform: platform})
}

// Watch re-reads the profile whenever the KV reports that this store's key
// changed, and hands the fresh profile to onChange. It returns once the
// subscription is set up; notifications stop when ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func(model.Profile)) error {
	w, ok := s.kv.(Watcher)
	if !ok {
		return ErrWatchUnsupported
	}

	changes, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.key, err)
	}

	go func() {
		for key := range changes {
			if key != s.key {
				continue
			}
			s.log.Debug("Profile changed externally, reloading")
			p := s.Profile(ctx)
			if onChange != nil {
				onChange(p)
			}
		}
	}()
	return nil
}

// load must be called with s.mu held.
func (s *Store) load(ctx context.Context) model.Profile {
	raw, ok, err := s.kv.Get(ctx, s.key)
	switch {
	case err != nil:
		s.log.Warn("Failed to read profile, using defaults", logger.Error(err))
		s.snapshot = model.NewProfile()
	case !ok:
		s.snapshot = model.NewProfile()
	default:
		var p model.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.log.Warn("Failed to decode profile, using defaults", logger.Error(err))
			p = model.Profile{}
		}
		p.Normalize()
		s.snapshot = p
	}
	return s.snapshot.Clone()
}

// save must be called with s.mu held.
func (s *Store) save(ctx context.Context, p model.Profile) {
	s.snapshot = p.Clone()

	raw, err := json.Marshal(p)
	if err != nil {
		s.log.Warn("Failed to encode profile", logger.Error(err))
		return
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		s.log.Warn("Failed to persist profile", logger.Error(err))
	}
}
