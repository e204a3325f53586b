package engine_test

import (
	"context"
	"fmt"
	"html/template"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bitlatte/readnext/internal/analytics"
	"github.com/Bitlatte/readnext/internal/engine"
	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/model"
	"github.com/Bitlatte/readnext/internal/prefs"
	"github.com/Bitlatte/readnext/internal/progress"
	"github.com/Bitlatte/readnext/internal/relevance"
)

type emitted struct {
	name  string
	props map[string]any
}

type recordingSink struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recordingSink) Emit(name string, props map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{name, props})
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func catalog() []*model.ContentItem {
	day0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []*model.ContentItem{
		{ID: "1", Slug: "ai-for-saas", Category: "Tech", Tags: []string{"ai", "saas"}, Author: "Jane", Published: day0,
			ContentHTML: template.HTML(`<h1>AI</h1><h2 id="why">Why</h2><h2>How it works</h2>`)},
		{ID: "2", Slug: "ml-ops", Category: "Tech", Tags: []string{"ai"}, Author: "Jane", Published: day0.AddDate(0, 0, 2)},
		{ID: "3", Slug: "sales-playbook", Category: "Sales", Author: "Bob", Published: day0.AddDate(0, 0, 1)},
		{ID: "4", Slug: "quarterly-pipeline", Category: "Sales", Tags: []string{"crm"}, Author: "Bob", Published: day0.AddDate(0, 3, 0)},
	}
}

func newEngine(t *testing.T) (*engine.Engine, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	stores := engine.VisitorStores(prefs.NewMemoryKV(), logger.NewNop())
	e := engine.New(relevance.NewRanker(relevance.DefaultWeights()), stores, sink, logger.NewNop(),
		engine.WithClock(func() time.Time { return fixedNow }))
	e.SetCatalog(catalog())
	return e, sink
}

func relatedSlugs(scored []relevance.Scored) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Item.Slug
	}
	return out
}

func TestRelated_RanksCatalog(t *testing.T) {
	e, _ := newEngine(t)

	got, err := e.Related(context.Background(), "v1", "ai-for-saas", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"ml-ops", "sales-playbook", "quarterly-pipeline"}, relatedSlugs(got))
	assert.Equal(t, 79, got[0].Score)
	assert.Equal(t, 14, got[1].Score)
}

func TestRelated_PersonalisedByProfile(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.Record(ctx, "v1", prefs.Event{Action: prefs.ActionView, Slug: "quarterly-pipeline"})
	require.NoError(t, err)

	got, err := e.Related(ctx, "v1", "ml-ops", 3)
	require.NoError(t, err)
	anon, err := e.Related(ctx, "v2", "ml-ops", 3)
	require.NoError(t, err)

	scores := map[string]int{}
	for _, s := range got {
		scores[s.Item.Slug] = s.Score
	}
	anonScores := map[string]int{}
	for _, s := range anon {
		anonScores[s.Item.Slug] = s.Score
	}
	// Sales became a preferred category (+20) and the viewed Sales post is
	// similar history (+3).
	assert.Equal(t, anonScores["sales-playbook"]+23, scores["sales-playbook"])
}

func TestRelated_UnknownSlug(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.Related(context.Background(), "v1", "missing", 5)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestOutline(t *testing.T) {
	e, _ := newEngine(t)

	toc, err := e.Outline("ai-for-saas")
	require.NoError(t, err)
	require.Len(t, toc, 1)
	require.Len(t, toc[0].Children, 2)
	assert.Equal(t, "why", toc[0].Children[0].ID)
	assert.Equal(t, "how-it-works", toc[0].Children[1].ID)

	toc, err = e.Outline("ml-ops")
	require.NoError(t, err)
	assert.Empty(t, toc)

	_, err = e.Outline("missing")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestRecord_EmitsAnalytics(t *testing.T) {
	ctx := context.Background()
	e, sink := newEngine(t)

	p, err := e.Record(ctx, "v1", prefs.Event{Action: prefs.ActionView, Slug: "ml-ops"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ml-ops"}, p.ReadingHistory)
	assert.Equal(t, []string{"Tech"}, p.PreferredCategories, "category comes from the catalog")

	_, err = e.Record(ctx, "v1", prefs.Event{Action: prefs.ActionBookmark, Slug: "ml-ops", Bookmark: prefs.BookmarkAdd})
	require.NoError(t, err)
	_, err = e.Record(ctx, "v1", prefs.Event{Action: prefs.ActionShare, Slug: "ml-ops", Platform: "linkedin"})
	require.NoError(t, err)

	require.Len(t, sink.events, 3)
	assert.Equal(t, "blog_view", sink.events[0].name)
	assert.Equal(t, "ml-ops", sink.events[0].props["slug"])
	assert.Equal(t, "Tech", sink.events[0].props["category"])
	assert.Equal(t, "2024-03-10T12:00:00Z", sink.events[0].props["timestamp"])
	assert.Equal(t, "blog_bookmark", sink.events[1].name)
	assert.Equal(t, "add", sink.events[1].props["action"])
	assert.Equal(t, "blog_share", sink.events[2].name)
	assert.Equal(t, "linkedin", sink.events[2].props["platform"])
}

func TestRecord_Rejects(t *testing.T) {
	ctx := context.Background()
	e, sink := newEngine(t)

	_, err := e.Record(ctx, "v1", prefs.Event{Action: prefs.ActionView, Slug: "missing"})
	assert.ErrorIs(t, err, engine.ErrNotFound)

	_, err = e.Record(ctx, "v1", prefs.Event{Action: "like", Slug: "ml-ops"})
	assert.ErrorIs(t, err, prefs.ErrInvalidEvent)

	assert.Empty(t, sink.events)
}

func TestObserveScroll_RecordsMilestonesOnce(t *testing.T) {
	ctx := context.Background()
	e, sink := newEngine(t)

	res, err := e.ObserveScroll(ctx, "v1", "ml-ops", progress.Metrics{ScrollOffset: 300, ViewportHeight: 500, DocumentHeight: 1000})
	require.NoError(t, err)
	assert.InDelta(t, 80.0, res.Progress, 1e-9)
	assert.Equal(t, []int{25, 50, 75}, res.Milestones)

	res, err = e.ObserveScroll(ctx, "v1", "ml-ops", progress.Metrics{ScrollOffset: 100, ViewportHeight: 500, DocumentHeight: 1000})
	require.NoError(t, err)
	assert.Empty(t, res.Milestones)

	p := e.Profile(ctx, "v1")
	assert.Equal(t, 75.0, p.ReadingProgress["ml-ops"])
	assert.Len(t, sink.events, 3)
	assert.Equal(t, "blog_scroll", sink.events[2].name)
	assert.Equal(t, 75.0, sink.events[2].props["scrollPercentage"])

	res, err = e.ObserveScroll(ctx, "v2", "ml-ops", progress.Metrics{DocumentHeight: 0})
	require.NoError(t, err)
	assert.Equal(t, []int{25, 50, 75, 100}, res.Milestones, "visitors are tracked separately")
}

func TestSetCatalog_Swaps(t *testing.T) {
	e, _ := newEngine(t)

	e.SetCatalog(catalog()[:1])

	assert.Len(t, e.Items(), 1)
	_, err := e.Item("ml-ops")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestNew_NilSinkIsNop(t *testing.T) {
	e := engine.New(relevance.NewRanker(relevance.DefaultWeights()),
		engine.VisitorStores(prefs.NewMemoryKV(), logger.NewNop()), nil, logger.NewNop())
	e.SetCatalog(catalog())

	_, err := e.Record(context.Background(), "", prefs.Event{Action: prefs.ActionShare, Slug: "ml-ops"})
	assert.NoError(t, err)
}

var _ analytics.Sink = (*recordingSink)(nil)

func TestVisitorKey(t *testing.T) {
	assert.Equal(t, "blog_preferences", engine.VisitorKey(""))
	assert.Equal(t, "blog_preferences:v1", engine.VisitorKey("v1"))
}

func TestVisitorStores_BoundedBySize(t *testing.T) {
	stores := engine.VisitorStoresSize(prefs.NewMemoryKV(), logger.NewNop(), 2)

	a := stores("a")
	b := stores("b")
	assert.Same(t, a, stores("a"))
	stores("c")

	assert.Same(t, a, stores("a"), "recently used visitors keep their store")
	assert.NotSame(t, b, stores("b"), "the least recently used store was released")
}

func TestVisitorStores_EvictedVisitorKeepsProfile(t *testing.T) {
	ctx := context.Background()
	kv := prefs.NewMemoryKV()
	stores := engine.VisitorStoresSize(kv, logger.NewNop(), 1)

	_, err := stores("a").RecordView(ctx, "ml-ops", "Tech")
	require.NoError(t, err)
	stores("b")

	assert.Equal(t, []string{"ml-ops"}, stores("a").Profile(ctx).ReadingHistory)
}

func TestObserveScroll_TrackerIsBounded(t *testing.T) {
	tracker := progress.NewTrackerSize(3)
	e := engine.New(relevance.NewRanker(relevance.DefaultWeights()),
		engine.VisitorStores(prefs.NewMemoryKV(), logger.NewNop()), nil, logger.NewNop(),
		engine.WithTracker(tracker))
	e.SetCatalog(catalog())

	for i := 0; i < 10; i++ {
		_, err := e.ObserveScroll(context.Background(), fmt.Sprintf("anon-%d", i), "ml-ops", progress.Metrics{DocumentHeight: 0})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, tracker.Len())
}

func TestRelated_PoolIsSameType(t *testing.T) {
	day0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	e := engine.New(relevance.NewRanker(relevance.DefaultWeights()),
		engine.VisitorStores(prefs.NewMemoryKV(), logger.NewNop()), nil, logger.NewNop())
	e.SetCatalog([]*model.ContentItem{
		{ID: "1", Slug: "ai-for-saas", Type: "posts", Category: "Tech", Published: day0},
		{ID: "2", Slug: "ml-ops", Type: "posts", Category: "Tech", Published: day0},
		{ID: "3", Slug: "about", Type: "page", Category: "Tech", Published: day0},
		{ID: "4", Slug: "contact", Type: "page"},
	})
	ctx := context.Background()

	got, err := e.Related(ctx, "v1", "ai-for-saas", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"ml-ops"}, relatedSlugs(got))

	static, err := e.RelatedStatic("ai-for-saas", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"ml-ops"}, relatedSlugs(static))

	// A viewed page is not resolved as reading history for posts.
	_, err = e.Record(ctx, "v2", prefs.Event{Action: prefs.ActionView, Slug: "about"})
	require.NoError(t, err)
	personal, err := e.Related(ctx, "v2", "ai-for-saas", 5)
	require.NoError(t, err)
	require.Len(t, personal, 1)
	assert.Equal(t, got[0].Score+20, personal[0].Score, "only the preferred-category boost applies")

	pages, err := e.Related(ctx, "v1", "about", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"contact"}, relatedSlugs(pages))
}

func TestVisitorStores_SharedPerVisitor(t *testing.T) {
	stores := engine.VisitorStores(prefs.NewMemoryKV(), logger.NewNop())

	assert.Same(t, stores("v1"), stores("v1"))
	assert.NotSame(t, stores("v1"), stores("v2"))
	assert.Equal(t, "blog_preferences:v2", stores("v2").Key())
}
