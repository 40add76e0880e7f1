package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	datasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_dataset_rows",
			Help: "Rows held by the loaded dataset",
		},
	)

	datasetLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashboard_dataset_load_duration_seconds",
			Help:    "Time spent loading the dataset",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	viewCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_view_cache_lookups_total",
			Help: "Dashboard view cache lookups by result",
		},
		[]string{"result"},
	)

	viewBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashboard_view_build_duration_seconds",
			Help:    "Time spent aggregating a filtered dashboard",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordDatasetLoad(rows int, duration time.Duration) {
	datasetRows.Set(float64(rows))
	datasetLoadDuration.Observe(duration.Seconds())
}

func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	viewCacheLookups.WithLabelValues(result).Inc()
}

func RecordViewBuild(duration time.Duration) {
	viewBuildDuration.Observe(duration.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
