package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the site's Prometheus collectors. Each instance owns its own
// registry so tests can build as many servers as they like.
type Metrics struct {
	registry *prometheus.Registry

	Resolutions   *prometheus.CounterVec
	Submissions   *prometheus.CounterVec
	EventsDropped prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_project_resolutions_total",
			Help: "Project detail lookups by result",
		}, []string{"result"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_contact_submissions_total",
			Help: "Contact form submit actions by outcome",
		}, []string{"outcome"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_events_dropped_total",
			Help: "Interaction events dropped because the write queue was full",
		}),
	}
}

func (m *Metrics) ObserveResolution(found bool) {
	result := "not_found"
	if found {
		result = "found"
	}
	m.Resolutions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSubmission(kind OutcomeKind) {
	m.Submissions.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
