package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeatherMap API call rate per endpoint. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per endpoint. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Classified provider failures (see client.CategorizeError).
	WeatherAPIErrorsTotal *prometheus.CounterVec

	// Dashboard stream refreshes by outcome: ready, failed, stale.
	DashboardRefreshTotal *prometheus.CounterVec

	// Favorites mutations that changed the set.
	FavoritesMutationsTotal *prometheus.CounterVec

	// Current size of the favorites set.
	FavoritesCount prometheus.Gauge

	// Per-city selection count (allow-list; others go to "other").
	CitySelectionsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: a client polling too aggressively.
	RateLimitDeniedTotal prometheus.Counter

	trackedCitiesMu sync.RWMutex
	trackedCities   map[string]struct{}
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
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"endpoint", "status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	WeatherAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiErrorsTotal",
			Help: "OpenWeatherMap API failures by category",
		},
		[]string{"endpoint", "category"},
	)
	DashboardRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboardRefreshTotal",
			Help: "Dashboard stream refreshes by outcome (ready, failed, stale)",
		},
		[]string{"stream", "outcome"},
	)
	FavoritesMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favoritesMutationsTotal",
			Help: "Favorites mutations that changed the set",
		},
		[]string{"op"},
	)
	FavoritesCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "favoritesCount",
			Help: "Number of cities in the favorites set",
		},
	)
	CitySelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citySelectionsTotal",
			Help: "City selections (allow-list; others use city=other)",
		},
		[]string{"city"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIErrorsTotal,
		DashboardRefreshTotal,
		FavoritesMutationsTotal, FavoritesCount,
		CitySelectionsTotal,
		RateLimitDeniedTotal,
	)
}

// SetTrackedCities sets the allow-list for city metrics. Non-tracked names increment "other".
func SetTrackedCities(names []string) {
	trackedCitiesMu.Lock()
	defer trackedCitiesMu.Unlock()
	trackedCities = make(map[string]struct{}, len(names))
	for _, n := range names {
		trackedCities[normalizeCityForMetrics(n)] = struct{}{}
	}
}

// RecordCitySelection records a dashboard city selection.
func RecordCitySelection(name string) {
	CitySelectionsTotal.WithLabelValues(MetricCityLabel(name)).Inc()
}

// MetricCityLabel returns the label to use for name, bounded by the allow-list.
func MetricCityLabel(name string) string {
	n := normalizeCityForMetrics(name)
	trackedCitiesMu.RLock()
	_, ok := trackedCities[n]
	trackedCitiesMu.RUnlock()
	if ok {
		return n
	}
	return "other"
}

func normalizeCityForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
