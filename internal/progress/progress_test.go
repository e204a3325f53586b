package progress_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Bitlatte/readnext/internal/progress"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		name string
		m    progress.Metrics
		want float64
	}{
		{"top of page", progress.Metrics{ScrollOffset: 0, ViewportHeight: 500, DocumentHeight: 2000}, 25},
		{"half way", progress.Metrics{ScrollOffset: 500, ViewportHeight: 500, DocumentHeight: 2000}, 50},
		{"bottom", progress.Metrics{ScrollOffset: 1500, ViewportHeight: 500, DocumentHeight: 2000}, 100},
		{"overscroll", progress.Metrics{ScrollOffset: 3000, ViewportHeight: 500, DocumentHeight: 2000}, 100},
		{"negative offset", progress.Metrics{ScrollOffset: -900, ViewportHeight: 100, DocumentHeight: 2000}, 0},
		{"zero height document", progress.Metrics{}, 100},
		{"negative height document", progress.Metrics{ViewportHeight: 10, DocumentHeight: -1}, 100},
		{"nan offset", progress.Metrics{ScrollOffset: math.NaN(), ViewportHeight: 1, DocumentHeight: 10}, 0},
		{"infinite offset", progress.Metrics{ScrollOffset: math.Inf(1), DocumentHeight: 10}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := progress.Progress(tt.m)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestTracker_OnePerMilestone(t *testing.T) {
	tr := progress.NewTracker()

	assert.Empty(t, tr.Observe("post", 10))
	assert.Equal(t, []int{25}, tr.Observe("post", 30))
	assert.Empty(t, tr.Observe("post", 40))
	assert.Equal(t, []int{50, 75}, tr.Observe("post", 80))
	assert.Empty(t, tr.Observe("post", 20), "scrolling back up reports nothing")
	assert.Equal(t, []int{100}, tr.Observe("post", 100))
	assert.Empty(t, tr.Observe("post", 100))

	assert.Equal(t, []int{25, 50}, tr.Observe("other", 55), "slugs are tracked independently")
}

func TestTracker_Reset(t *testing.T) {
	tr := progress.NewTracker()
	tr.Observe("post", 100)

	tr.Reset("post")

	assert.Equal(t, []int{25, 50, 75, 100}, tr.Observe("post", 100))
}

func TestTracker_BoundedBySize(t *testing.T) {
	tr := progress.NewTrackerSize(2)

	tr.Observe("a", 30)
	tr.Observe("b", 30)
	tr.Observe("a", 30)
	tr.Observe("c", 30)

	assert.Equal(t, 2, tr.Len())
	assert.Empty(t, tr.Observe("a", 30), "recently used slugs are kept")
	assert.Equal(t, []int{25}, tr.Observe("b", 30), "the least recently used slug was forgotten")
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_DefaultSize(t *testing.T) {
	tr := progress.NewTrackerSize(0)
	for i := 0; i < progress.DefaultTrackerSize+10; i++ {
		tr.Observe(fmt.Sprintf("visitor-%d", i), 100)
	}
	assert.Equal(t, progress.DefaultTrackerSize, tr.Len())
}
