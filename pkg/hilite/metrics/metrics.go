// Package metrics defines the Prometheus collectors published by the
// annotation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Feedback event kinds.
const (
	FeedbackClicked    = "clicked"
	FeedbackIgnored    = "ignored"
	FeedbackCorrection = "correction"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is
// a valid no-op sink, so callers never guard their observations.
type Metrics struct {
	DocumentsProcessed prometheus.Counter
	ProcessDuration    prometheus.Histogram
	HighlightsReturned prometheus.Histogram
	ExploredHighlights prometheus.Counter
	FeedbackEvents     *prometheus.CounterVec
}

// New creates and registers the collectors. A nil registerer falls
// back to the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		DocumentsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hilite_documents_processed_total",
				Help: "Total documents run through the annotation pipeline.",
			},
		),
		ProcessDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hilite_process_duration_seconds",
				Help:    "Annotation pipeline latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		HighlightsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hilite_highlights_returned",
				Help:    "Number of highlights returned per document.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
		ExploredHighlights: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hilite_explored_highlights_total",
				Help: "Highlights shown by the exploration roll rather than the confidence gate.",
			},
		),
		FeedbackEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hilite_feedback_events_total",
				Help: "Feedback events by kind (clicked, ignored, correction).",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.DocumentsProcessed,
		m.ProcessDuration,
		m.HighlightsReturned,
		m.ExploredHighlights,
		m.FeedbackEvents,
	)

	return m
}

// ObserveProcess records one pipeline run.
func (m *Metrics) ObserveProcess(d time.Duration, highlights, explored int) {
	if m == nil {
		return
	}
	m.DocumentsProcessed.Inc()
	m.ProcessDuration.Observe(d.Seconds())
	m.HighlightsReturned.Observe(float64(highlights))
	if explored > 0 {
		m.ExploredHighlights.Add(float64(explored))
	}
}

// ObserveFeedback records one feedback event by kind.
func (m *Metrics) ObserveFeedback(kind string) {
	if m == nil {
		return
	}
	m.FeedbackEvents.WithLabelValues(kind).Inc()
}
