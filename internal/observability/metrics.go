package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sahayata"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard service.
type Metrics struct {
	// Hazard heat layer.
	HazardRefreshes        *prometheus.CounterVec // labels: trigger={startup,tick,manual,select,abandoned}
	HazardRefreshDuration  prometheus.Histogram
	HazardPoints           *prometheus.GaugeVec   // labels: source
	HazardSourceErrors     *prometheus.CounterVec // labels: source
	HazardRefresherRunning prometheus.Gauge

	// Critical incidents panel.
	IncidentRefreshes *prometheus.CounterVec // labels: outcome={remote,fallback}
	IncidentsCurrent  prometheus.Gauge

	// Relief backend.
	BackendRequests *prometheus.CounterVec   // labels: endpoint, outcome={success,error}
	BackendDuration *prometheus.HistogramVec // labels: endpoint
	FeedCache       *prometheus.CounterVec   // labels: result={hit,miss}

	// Form submissions.
	Submissions     *prometheus.CounterVec // labels: kind, status
	EventsPublished *prometheus.CounterVec // labels: type, outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse}
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewDetachedMetrics creates unregistered Metrics for one-shot commands that
// never serve /metrics.
func NewDetachedMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		HazardRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hazard_refreshes_total",
			Help:      "Hazard heat layer refreshes by trigger.",
		}, []string{"trigger"}),
		HazardRefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hazard_refresh_duration_seconds",
			Help:      "Duration of a complete fetch-and-normalize cycle over the selected sources.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		HazardPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hazard_points",
			Help:      "Heat points in the current snapshot by source.",
		}, []string{"source"}),
		HazardSourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hazard_source_errors_total",
			Help:      "Hazard feed fetch or parse failures by source.",
		}, []string{"source"}),
		HazardRefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hazard_refresher_running",
			Help:      "1 when the periodic hazard refresher is active, 0 when shut down.",
		}),
		IncidentRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_refreshes_total",
			Help:      "Incident panel refreshes by outcome.",
		}, []string{"outcome"}),
		IncidentsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "incidents_current",
			Help:      "Incidents currently shown, placeholders included.",
		}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Relief backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Relief backend request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		FeedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_cache_total",
			Help:      "Hazard feed body cache lookups by result.",
		}, []string{"result"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Form submissions by kind and status.",
		}, []string{"kind", "status"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events written to the event topic by type and outcome.",
		}, []string{"type", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.HazardRefreshes,
		m.HazardRefreshDuration,
		m.HazardPoints,
		m.HazardSourceErrors,
		m.HazardRefresherRunning,
		m.IncidentRefreshes,
		m.IncidentsCurrent,
		m.BackendRequests,
		m.BackendDuration,
		m.FeedCache,
		m.Submissions,
		m.EventsPublished,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
