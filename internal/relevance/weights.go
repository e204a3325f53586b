// Package relevance ranks candidate posts against a reference post and a
// reader's preference profile.
package relevance

// Weights are the points each relevance signal contributes.
type Weights struct {
	Category          float64 `mapstructure:"category"`          // same category
	Tag               float64 `mapstructure:"tag"`               // per shared tag
	Author            float64 `mapstructure:"author"`            // same author
	RecencyMax        float64 `mapstructure:"recencyMax"`        // at zero days apart
	RecencyDecay      float64 `mapstructure:"recencyDecay"`      // lost per day apart
	RecencyWindowDays float64 `mapstructure:"recencyWindowDays"` // no recency points beyond
	PreferredCategory float64 `mapstructure:"preferredCategory"` // category in profile
	HistoryPerMatch   float64 `mapstructure:"historyPerMatch"`   // per similar history item
	HistoryCap        float64 `mapstructure:"historyCap"`        // upper bound of history points
}

// DefaultLimit is the number of related items returned when no limit is given.
const DefaultLimit = 5

// DefaultWeights returns the stock weighting:
//
//	category 40, tag 15 each, author 10,
//	recency 15 - days/2 within 30 days,
//	preferred category 20, history 3 per similar item capped at 15.
func DefaultWeights() Weights {
	return Weights{
		Category:          40,
		Tag:               15,
		Author:            10,
		RecencyMax:        15,
		RecencyDecay:      0.5,
		RecencyWindowDays: 30,
		PreferredCategory: 20,
		HistoryPerMatch:   3,
		HistoryCap:        15,
	}
}

// WeightOverrides names the weights configuration sets explicitly. Nil
// fields keep the base weight; an explicit zero switches a signal off.
type WeightOverrides struct {
	Category          *float64 `mapstructure:"category"`
	Tag               *float64 `mapstructure:"tag"`
	Author            *float64 `mapstructure:"author"`
	RecencyMax        *float64 `mapstructure:"recencyMax"`
	RecencyDecay      *float64 `mapstructure:"recencyDecay"`
	RecencyWindowDays *float64 `mapstructure:"recencyWindowDays"`
	PreferredCategory *float64 `mapstructure:"preferredCategory"`
	HistoryPerMatch   *float64 `mapstructure:"historyPerMatch"`
	HistoryCap        *float64 `mapstructure:"historyCap"`
}

// Apply returns w with every set field of o replacing the original value.
func (o WeightOverrides) Apply(w Weights) Weights {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&w.Category, o.Category)
	set(&w.Tag, o.Tag)
	set(&w.Author, o.Author)
	set(&w.RecencyMax, o.RecencyMax)
	set(&w.RecencyDecay, o.RecencyDecay)
	set(&w.RecencyWindowDays, o.RecencyWindowDays)
	set(&w.PreferredCategory, o.PreferredCategory)
	set(&w.HistoryPerMatch, o.HistoryPerMatch)
	set(&w.HistoryCap, o.HistoryCap)
	return w
}
