package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scoring metrics
	ObservationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_observations_processed_total",
			Help: "Total number of observations processed",
		},
		[]string{"status"}, // scored, rejected
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "radar_scoring_duration_seconds",
			Help:    "Duration of scoring one batch",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	RadarScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "radar_scores",
			Help:    "Distribution of radar scores (0-99)",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 65, 70, 75, 80, 85, 90, 95, 99},
		},
	)

	SignalsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_signals_stored_total",
			Help: "Total number of new signals persisted",
		},
	)

	IngestCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_ingest_cycles_total",
			Help: "Total number of ingest cycles",
		},
		[]string{"source", "status"}, // live/mock, success/error
	)

	// Feed metrics
	FeedQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_feed_queries_total",
			Help: "Total number of feed queries",
		},
		[]string{"cache"}, // hit, miss, error
	)

	// Alert metrics
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_alerts_sent_total",
			Help: "Total number of alerts sent",
		},
		[]string{"status", "tier"}, // success/error, EXTREME/HIGH/LOW
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_alerts_suppressed_total",
			Help: "Total number of alerts suppressed due to cooldown",
		},
	)

	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_api_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"api", "endpoint", "status"}, // data/gamma, /trades, success/error
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radar_api_request_duration_seconds",
			Help:    "Duration of upstream API requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "endpoint"},
	)

	// Store metrics
	StoreQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_store_queries_total",
			Help: "Total number of store queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radar_store_query_duration_seconds",
			Help:    "Duration of store queries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Live push
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_stream_clients",
			Help: "Number of connected signal stream clients",
		},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_health_checks_total",
			Help: "Total number of readiness check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordBatch records the outcome of scoring one batch
func RecordBatch(duration time.Duration, scores []int, rejected int) {
	ScoringDuration.Observe(duration.Seconds())
	ObservationsProcessed.WithLabelValues("scored").Add(float64(len(scores)))
	ObservationsProcessed.WithLabelValues("rejected").Add(float64(rejected))
	for _, s := range scores {
		RadarScores.Observe(float64(s))
	}
}

// RecordCycle records an ingest cycle
func RecordCycle(source string, err error) {
	IngestCycles.WithLabelValues(source, statusOf(err)).Inc()
}

// RecordFeedQuery records a feed query by cache outcome
func RecordFeedQuery(cache string) {
	FeedQueries.WithLabelValues(cache).Inc()
}

// RecordAlert records alert metrics
func RecordAlert(tier string, err error, suppressed bool) {
	if suppressed {
		AlertsSuppressed.Inc()
		return
	}
	AlertsSent.WithLabelValues(statusOf(err), tier).Inc()
}

// RecordAPIRequest records API request metrics
func RecordAPIRequest(api, endpoint string, duration time.Duration, err error) {
	APIRequests.WithLabelValues(api, endpoint, statusOf(err)).Inc()
	APIRequestDuration.WithLabelValues(api, endpoint).Observe(duration.Seconds())
}

// RecordStoreQuery records store query metrics
func RecordStoreQuery(operation string, duration time.Duration, err error) {
	StoreQueries.WithLabelValues(operation, statusOf(err)).Inc()
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
