// Package engine ties the post catalog, per-reader preference stores and the
// analytics sink into the operations the CLI and HTTP API expose.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/Bitlatte/readnext/internal/analytics"
	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/model"
	"github.com/Bitlatte/readnext/internal/outline"
	"github.com/Bitlatte/readnext/internal/prefs"
	"github.com/Bitlatte/readnext/internal/progress"
	"github.com/Bitlatte/readnext/internal/relevance"
)

// ErrNotFound is returned for a slug that is not in the catalog.
var ErrNotFound = errors.New("content not found")

// StoreFactory returns the preference store of a visitor.
type StoreFactory func(visitor string) *prefs.Store

// Engine serves related posts, outlines and interaction recording over a
// swappable catalog.
type Engine struct {
	ranker  *relevance.Ranker
	limit   int
	stores  StoreFactory
	sink    analytics.Sink
	tracker *progress.Tracker
	log     logger.Logger
	now     func() time.Time

	mu       sync.RWMutex
	items    []*model.ContentItem
	bySlug   map[string]*model.ContentItem
	outlines map[string][]model.OutlineItem
}

// Option customises an Engine.
type Option func(*Engine)

// WithLimit sets the default number of related posts.
func WithLimit(n int) Option { return func(e *Engine) { e.limit = n } }

// WithTracker replaces the scroll milestone tracker.
func WithTracker(t *progress.Tracker) Option { return func(e *Engine) { e.tracker = t } }

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New returns an Engine with an empty catalog.
func New(ranker *relevance.Ranker, stores StoreFactory, sink analytics.Sink, log logger.Logger, opts ...Option) *Engine {
	if sink == nil {
		sink = analytics.Nop{}
	}
	e := &Engine{
		ranker:   ranker,
		limit:    relevance.DefaultLimit,
		stores:   stores,
		sink:     sink,
		tracker:  progress.NewTracker(),
		log:      log,
		now:      time.Now,
		bySlug:   map[string]*model.ContentItem{},
		outlines: map[string][]model.OutlineItem{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// DefaultVisitorStores is the number of visitor stores VisitorStores keeps.
const DefaultVisitorStores = 1024

// VisitorStores returns a StoreFactory keying each visitor's profile as
// "blog_preferences:<visitor>" in kv. The empty visitor maps to the plain
// "blog_preferences" key. Stores of the DefaultVisitorStores most recently
// seen visitors are reused.
func VisitorStores(kv prefs.KV, log logger.Logger, opts ...prefs.Option) StoreFactory {
	return VisitorStoresSize(kv, log, DefaultVisitorStores, opts...)
}

// VisitorStoresSize is VisitorStores keeping at most size stores. A size <= 0
// selects DefaultVisitorStores. An evicted visitor gets a fresh store on its
// next request; the profile itself stays in kv.
func VisitorStoresSize(kv prefs.KV, log logger.Logger, size int, opts ...prefs.Option) StoreFactory {
	if size <= 0 {
		size = DefaultVisitorStores
	}
	var mu sync.Mutex
	stores := lru.New(size)

	return func(visitor string) *prefs.Store {
		mu.Lock()
		defer mu.Unlock()

		if s, ok := stores.Get(visitor); ok {
			return s.(*prefs.Store)
		}
		storeOpts := make([]prefs.Option, 0, len(opts)+1)
		storeOpts = append(storeOpts, opts...)
		storeOpts = append(storeOpts, prefs.WithKey(VisitorKey(visitor)))
		s := prefs.NewStore(kv, log, storeOpts...)
		stores.Add(visitor, s)
		return s
	}
}

// VisitorKey returns the KV key holding visitor's profile.
func VisitorKey(visitor string) string {
	if visitor == "" {
		return model.PreferencesKey
	}
	return model.PreferencesKey + ":" + visitor
}

// SetCatalog replaces the catalog. Outlines are extracted up front; an item
// whose HTML cannot be parsed gets an empty outline.
func (e *Engine) SetCatalog(items []*model.ContentItem) {
	bySlug := make(map[string]*model.ContentItem, len(items))
	outlines := make(map[string][]model.OutlineItem, len(items))
	for _, it := range items {
		bySlug[it.Slug] = it
		toc, err := outline.Extract(string(it.ContentHTML))
		if err != nil {
			e.log.Warn("Failed to extract outline", logger.String("slug", it.Slug), logger.Error(err))
		}
		outlines[it.Slug] = toc
	}

	e.mu.Lock()
	e.items = append([]*model.ContentItem(nil), items...)
	e.bySlug = bySlug
	e.outlines = outlines
	e.mu.Unlock()
}

// Items returns the current catalog.
func (e *Engine) Items() []*model.ContentItem {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*model.ContentItem(nil), e.items...)
}

// Item looks up a post by slug.
func (e *Engine) Item(slug string) (*model.ContentItem, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	it, ok := e.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return it, nil
}

// Related ranks the items of slug's type against it, personalised with the
// visitor's profile. limit <= 0 selects the engine default.
func (e *Engine) Related(ctx context.Context, visitor, slug string, limit int) ([]relevance.Scored, error) {
	ref, err := e.Item(slug)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.limit
	}
	profile := e.stores(visitor).Profile(ctx)
	return e.ranker.RankScored(ref, e.pool(ref), profile, limit), nil
}

// RelatedStatic ranks without any profile, as used when building pages.
func (e *Engine) RelatedStatic(slug string, limit int) ([]relevance.Scored, error) {
	ref, err := e.Item(slug)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.limit
	}
	return e.ranker.RankScored(ref, e.pool(ref), model.NewProfile(), limit), nil
}

// pool returns the candidates for ref: catalog items of the same type, so
// posts are never related to standalone pages. Reading history is resolved
// against the same pool.
func (e *Engine) pool(ref *model.ContentItem) []*model.ContentItem {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*model.ContentItem, 0, len(e.items))
	for _, it := range e.items {
		if it.Type == ref.Type {
			out = append(out, it)
		}
	}
	return out
}

// Outline returns the table of contents of slug.
func (e *Engine) Outline(slug string) ([]model.OutlineItem, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	toc, ok := e.outlines[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return toc, nil
}

// Profile returns the visitor's current profile.
func (e *Engine) Profile(ctx context.Context, visitor string) model.Profile {
	return e.stores(visitor).Profile(ctx)
}

// Record applies an interaction to the visitor's profile and emits the
// matching analytics event. Views of known posts without a category pick up
// the post's category.
func (e *Engine) Record(ctx context.Context, visitor string, ev prefs.Event) (model.Profile, error) {
	if err := ev.Validate(); err != nil {
		return model.Profile{}, err
	}
	item, err := e.Item(ev.Slug)
	if err != nil {
		return model.Profile{}, err
	}
	if ev.Action == prefs.ActionView && ev.Category == "" {
		ev.Category = item.Category
	}

	p, err := e.stores(visitor).Record(ctx, ev)
	if err != nil {
		return model.Profile{}, err
	}

	e.sink.Emit(analytics.EventName(string(ev.Action)), e.properties(visitor, ev))
	return p, nil
}

// ScrollResult reports a progress sample and the milestones it recorded.
type ScrollResult struct {
	Progress   float64 `json:"progress"`
	Milestones []int   `json:"milestones"`
}

// ObserveScroll samples the reading progress of slug and records one scroll
// event per milestone crossed for the first time by this visitor.
func (e *Engine) ObserveScroll(ctx context.Context, visitor, slug string, m progress.Metrics) (ScrollResult, error) {
	if _, err := e.Item(slug); err != nil {
		return ScrollResult{}, err
	}

	res := ScrollResult{Progress: progress.Progress(m), Milestones: []int{}}
	for _, milestone := range e.tracker.Observe(visitor+"\x00"+slug, res.Progress) {
		pct := float64(milestone)
		if _, err := e.Record(ctx, visitor, prefs.Event{Action: prefs.ActionScroll, Slug: slug, ScrollPercentage: &pct}); err != nil {
			return res, err
		}
		res.Milestones = append(res.Milestones, milestone)
	}
	return res, nil
}

func (e *Engine) properties(visitor string, ev prefs.Event) map[string]any {
	props := map[string]any{
		"slug":      ev.Slug,
		"timestamp": e.now().UTC().Format(time.RFC3339),
	}
	if visitor != "" {
		props["visitor"] = visitor
	}
	switch ev.Action {
	case prefs.ActionView:
		if ev.Category != "" {
			props["category"] = ev.Category
		}
	case prefs.ActionBookmark:
		props["action"] = string(ev.Bookmark)
	case prefs.ActionScroll:
		if ev.ScrollPercentage != nil {
			props["scrollPercentage"] = *ev.ScrollPercentage
		}
		if ev.TimeOnPage != nil {
			props["timeOnPage"] = *ev.TimeOnPage
		}
	case prefs.ActionShare:
		if ev.Platform != "" {
			props["platform"] = ev.Platform
		}
	}
	return props
}
