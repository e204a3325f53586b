// Package progress turns scroll metrics into a reading-progress percentage
// and rate-limits progress reporting to fixed milestones.
package progress

import (
	"math"
	"sync"

	"github.com/golang/groupcache/lru"
)

// Milestones are the progress thresholds worth reporting, ascending.
var Milestones = []int{25, 50, 75, 100}

// Metrics are the host surface's scroll and layout measurements.
type Metrics struct {
	ScrollOffset   float64 `json:"scrollOffset"`
	ViewportHeight float64 `json:"viewportHeight"`
	DocumentHeight float64 `json:"documentHeight"`
}

// Progress returns how far through the document the bottom of the viewport
// is, as a percentage in [0, 100]. A document with no height counts as fully
// read.
func Progress(m Metrics) float64 {
	if m.DocumentHeight <= 0 {
		return 100
	}
	return clamp((m.ScrollOffset + m.ViewportHeight) / m.DocumentHeight * 100)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// DefaultTrackerSize is the number of slugs a Tracker created by NewTracker
// remembers.
const DefaultTrackerSize = 4096

// Tracker remembers which milestones each slug has crossed, so a continuous
// stream of samples produces at most one report per milestone per slug.
// Only the most recently observed slugs are kept; a slug pushed out of the
// tracker reports its milestones again. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	reached *lru.Cache
}

// NewTracker returns an empty Tracker holding DefaultTrackerSize slugs.
func NewTracker() *Tracker {
	return NewTrackerSize(DefaultTrackerSize)
}

// NewTrackerSize returns an empty Tracker holding at most size slugs. A
// size <= 0 selects DefaultTrackerSize.
func NewTrackerSize(size int) *Tracker {
	if size <= 0 {
		size = DefaultTrackerSize
	}
	return &Tracker{reached: lru.New(size)}
}

// Observe records a progress sample for slug and returns the milestones it
// crosses for the first time, ascending.
func (t *Tracker) Observe(slug string, progress float64) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var seen map[int]struct{}
	if v, ok := t.reached.Get(slug); ok {
		seen = v.(map[int]struct{})
	} else {
		seen = make(map[int]struct{}, len(Milestones))
		t.reached.Add(slug, seen)
	}

	var crossed []int
	for _, m := range Milestones {
		if progress < float64(m) {
			break
		}
		if _, done := seen[m]; done {
			continue
		}
		seen[m] = struct{}{}
		crossed = append(crossed, m)
	}
	return crossed
}

// Reset forgets every milestone recorded for slug.
func (t *Tracker) Reset(slug string) {
	t.mu.Lock()
	t.reached.Remove(slug)
	t.mu.Unlock()
}

// Len returns the number of slugs currently remembered.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reached.Len()
}
