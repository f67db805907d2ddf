// Package metrics exposes Prometheus instrumentation for the HTTP API and the
// patient serializers.
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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inflammation_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inflammation_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inflammation_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	serializerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inflammation_serializer_operations_total",
			Help: "Patient serializer operations by format, operation and outcome",
		},
		[]string{"format", "op", "outcome"},
	)

	serializerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inflammation_serializer_duration_seconds",
			Help:    "Patient serializer operation duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"format", "op"},
	)

	patientsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inflammation_patients",
			Help: "Number of patients held by the API",
		},
	)

	httpPanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inflammation_http_panics_total",
			Help: "Handler panics recovered, by route pattern",
		},
		[]string{"path"},
	)

	observationsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inflammation_observations_recorded_total",
			Help: "Observations recorded through the API",
		},
	)
)

// Middleware records request counts and latency. The route pattern is used
// as the path label so patient names do not explode cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := RoutePattern(c)
			method := c.Request().Method

			httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RoutePattern returns the matched route ("/api/v1/patients/:name"), or
// "unmatched" when no route was found.
func RoutePattern(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

func PanicRecovered(path string) {
	httpPanicsTotal.WithLabelValues(path).Inc()
}

// ObserveSerializer records one serializer operation ("encode", "decode",
// "save", "load") that began at start.
func ObserveSerializer(format, op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	serializerOpsTotal.WithLabelValues(format, op, outcome).Inc()
	serializerDuration.WithLabelValues(format, op).Observe(time.Since(start).Seconds())
}

func SetPatients(n int) {
	patientsTotal.Set(float64(n))
}

func ObservationRecorded() {
	observationsRecorded.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
