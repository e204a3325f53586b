package relevance

import (
	"math"
	"sort"
	"time"

	"github.com/Bitlatte/readnext/internal/model"
)

const hoursPerDay = 24

// Scored pairs a candidate with its relevance score.
type Scored struct {
	Item  *model.ContentItem
	Score int
}

// Ranker scores candidates with a fixed set of weights.
type Ranker struct {
	weights Weights
}

// NewRanker returns a Ranker using w.
func NewRanker(w Weights) *Ranker {
	return &Ranker{weights: w}
}

// Weights returns the ranker's weights.
func (r *Ranker) Weights() Weights { return r.weights }

var defaultRanker = NewRanker(DefaultWeights())

// Rank returns up to limit candidates most relevant to reference, using the
// default weights.
func Rank(reference *model.ContentItem, candidates []*model.ContentItem, profile model.Profile, limit int) []*model.ContentItem {
	return defaultRanker.Rank(reference, candidates, profile, limit)
}

// Rank returns up to limit candidates most relevant to reference. The
// reference itself is never returned. Equal scores keep input order.
func (r *Ranker) Rank(reference *model.ContentItem, candidates []*model.ContentItem, profile model.Profile, limit int) []*model.ContentItem {
	scored := r.RankScored(reference, candidates, profile, limit)
	out := make([]*model.ContentItem, len(scored))
	for i, s := range scored {
		out[i] = s.Item
	}
	return out
}

// RankScored is Rank with the score of every returned item.
func (r *Ranker) RankScored(reference *model.ContentItem, candidates []*model.ContentItem, profile model.Profile, limit int) []Scored {
	if limit <= 0 {
		limit = DefaultLimit
	}

	history := resolveHistory(profile.ReadingHistory, candidates)

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || (reference != nil && c.ID == reference.ID) {
			continue
		}
		scored = append(scored, Scored{Item: c, Score: r.score(reference, c, profile, history)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Score returns the relevance of candidate to reference. pool is the full
// candidate pool used to resolve the profile's reading history.
func (r *Ranker) Score(reference, candidate *model.ContentItem, profile model.Profile, pool []*model.ContentItem) int {
	return r.score(reference, candidate, profile, resolveHistory(profile.ReadingHistory, pool))
}

func (r *Ranker) score(reference, c *model.ContentItem, profile model.Profile, history []*model.ContentItem) int {
	w := r.weights
	total := 0.0

	if reference != nil {
		if c.Category != "" && c.Category == reference.Category {
			total += w.Category
		}
		total += w.Tag * float64(sharedTags(reference, c))
		if c.Author != "" && c.Author == reference.Author {
			total += w.Author
		}
		total += r.recency(reference.Published, c.Published)
	}

	if c.Category != "" && profile.PrefersCategory(c.Category) {
		total += w.PreferredCategory
	}

	similar := 0
	for _, h := range history {
		if similarTo(h, c) {
			similar++
		}
	}
	total += math.Min(w.HistoryCap, w.HistoryPerMatch*float64(similar))

	if total < 0 {
		return 0
	}
	return int(math.Floor(total))
}

func (r *Ranker) recency(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	days := math.Abs(a.Sub(b).Hours()) / hoursPerDay
	if days > r.weights.RecencyWindowDays {
		return 0
	}
	return math.Max(0, r.weights.RecencyMax-days*r.weights.RecencyDecay)
}

// sharedTags counts the distinct tags of c that reference also carries.
func sharedTags(reference, c *model.ContentItem) int {
	if len(reference.Tags) == 0 || len(c.Tags) == 0 {
		return 0
	}
	refTags := make(map[string]struct{}, len(reference.Tags))
	for _, t := range reference.Tags {
		refTags[t] = struct{}{}
	}
	seen := make(map[string]struct{}, len(c.Tags))
	n := 0
	for _, t := range c.Tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := refTags[t]; ok {
			n++
		}
	}
	return n
}

func similarTo(h, c *model.ContentItem) bool {
	if h.Category != "" && h.Category == c.Category {
		return true
	}
	for _, t := range c.Tags {
		if h.HasTag(t) {
			return true
		}
	}
	return false
}

// resolveHistory maps history slugs to items of pool, dropping unknown slugs.
func resolveHistory(history []string, pool []*model.ContentItem) []*model.ContentItem {
	if len(history) == 0 {
		return nil
	}
	bySlug := make(map[string]*model.ContentItem, len(pool))
	for _, item := range pool {
		if item != nil {
			bySlug[item.Slug] = item
		}
	}
	out := make([]*model.ContentItem, 0, len(history))
	for _, slug := range history {
		if item, ok := bySlug[slug]; ok {
			out = append(out, item)
		}
	}
	return out
}
