package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Forecast outcomes (success, error). Watch for: error ratio, feeds health degraded state.
	ForecastRequestsTotal *prometheus.CounterVec

	// Days served per forecast after the days fallback is applied.
	ForecastDaysServed prometheus.Histogram

	// Single-vector inference latency. Watch for: growth after deploying a larger forest.
	ModelInferenceDuration prometheus.Histogram

	// Inference failures. Watch for: any non-zero rate means bad inputs reached the model.
	ModelInferenceErrorsTotal prometheus.Counter

	// Trees in the loaded forest. Set once at startup.
	ModelTrees prometheus.Gauge

	// Rate limit denials. Watch for: capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ForecastRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastRequestsTotal",
			Help: "Total number of forecast requests by outcome",
		},
		[]string{"outcome"},
	)
	ForecastDaysServed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forecastDaysServed",
			Help:    "Number of days in each successful forecast",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7},
		},
	)
	ModelInferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelInferenceDurationSeconds",
			Help:    "Latency of a single model prediction in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
	)
	ModelInferenceErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modelInferenceErrorsTotal",
			Help: "Total number of failed model predictions",
		},
	)
	ModelTrees = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelTrees",
			Help: "Number of trees in the loaded forest",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ForecastRequestsTotal, ForecastDaysServed,
		ModelInferenceDuration, ModelInferenceErrorsTotal, ModelTrees,
		RateLimitDeniedTotal,
	)
}

// RecordForecast records a forecast outcome. days is ignored on error.
func RecordForecast(days int, err error) {
	if err != nil {
		ForecastRequestsTotal.WithLabelValues("error").Inc()
		return
	}
	ForecastRequestsTotal.WithLabelValues("success").Inc()
	ForecastDaysServed.Observe(float64(days))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
