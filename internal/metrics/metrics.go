// Package metrics exposes Prometheus collectors for the analysis run.
//
// Collectors live on Registry, which Push sends to a Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Search lookup result label values.
const (
	LookupHit      = "hit"
	LookupMiss     = "miss"
	LookupError    = "error"
	LookupDisabled = "disabled"
)

// Registry holds every collector defined by this package.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsstio_http_requests_total",
			Help: "Total number of LTD API requests, labeled by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	httpRequestDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsstio_http_request_duration_seconds",
			Help:    "Histogram of LTD API request latencies, labeled by endpoint.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"endpoint"},
	)

	productsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsstio_products_total",
			Help: "Total number of products ingested, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	searchLookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsstio_search_lookups_total",
			Help: "Total number of search index lookups, labeled by result.",
		},
		[]string{"result"},
	)

	inflightUnits = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "lsstio_inflight_units",
			Help: "Number of ingestion units currently holding a concurrency slot.",
		},
	)

	rateLimitDelaysSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsstio_rate_limit_delays_seconds",
			Help:    "Histogram of request pacing wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)
)

// SanitizeHost extracts a lowercase hostname from rawURL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveRequest records one LTD API request.
func ObserveRequest(endpoint string, err error, duration time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	httpRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	httpRequestDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveProduct records the outcome of one product ingestion.
func ObserveProduct(outcome string) {
	productsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSearchLookup records the result of one search index lookup.
func ObserveSearchLookup(result string) {
	searchLookupsTotal.WithLabelValues(result).Inc()
}

// IncInflight increments the in-flight units gauge.
func IncInflight() {
	inflightUnits.Inc()
}

// DecInflight decrements the in-flight units gauge.
func DecInflight() {
	inflightUnits.Dec()
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// Push sends every collector in Registry to the Pushgateway at gatewayURL.
func Push(ctx context.Context, gatewayURL, job string) error {
	if job == "" {
		job = "lsst_io_analysis"
	}
	if err := push.New(gatewayURL, job).Gatherer(Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
