// Package metrics exposes Prometheus collectors for the HTTP surface and the
// comparison engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconciler_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconciler_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Comparison metrics
	comparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_comparisons_total",
			Help: "Total number of patient comparisons by outcome",
		},
		[]string{"outcome"},
	)

	comparisonDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconciler_comparison_duration_seconds",
			Help:    "Time spent comparing one patient across all categories",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	recordsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_records_classified_total",
			Help: "Records classified per category, source and kind (common or unique)",
		},
		[]string{"category", "source", "kind"},
	)

	asymmetricCategories = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_asymmetric_categories_total",
			Help: "Categories where the common count differed between the two sides",
		},
		[]string{"category"},
	)

	comparisonsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_comparisons_stored_total",
			Help: "Comparison results persisted to the database",
		},
		[]string{"status"},
	)
)

// Outcome labels for RecordComparison.
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count, latency and in-flight gauge. The route
// label uses the registered echo path so ids never become label values.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := routeLabel(c)
			httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

// RecordComparison records one patient comparison and how long it took.
func RecordComparison(outcome string, d time.Duration) {
	comparisonsTotal.WithLabelValues(outcome).Inc()
	comparisonDuration.Observe(d.Seconds())
}

// RecordClassified adds the common and unique counts for one side of a
// category.
func RecordClassified(category, source string, common, unique int) {
	recordsClassified.WithLabelValues(category, source, "common").Add(float64(common))
	recordsClassified.WithLabelValues(category, source, "unique").Add(float64(unique))
}

// RecordAsymmetry counts a category whose common counts disagree.
func RecordAsymmetry(category string) {
	asymmetricCategories.WithLabelValues(category).Inc()
}

// RecordStored counts a persistence attempt.
func RecordStored(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	comparisonsStored.WithLabelValues(status).Inc()
}
