package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readnext_analytics_events_total",
		Help: "Analytics events accepted into the buffer.",
	}, []string{"event"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readnext_analytics_dropped_total",
		Help: "Analytics events dropped because the buffer was full or closed.",
	}, []string{"event"})

	writeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "readnext_analytics_write_failures_total",
		Help: "Analytics events the writer failed to deliver.",
	})
)
