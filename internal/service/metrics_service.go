package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the intake
// surface and the solve worker.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	solveDuration   *prometheus.HistogramVec
	solveTotal      *prometheus.CounterVec
	placedBlocks    prometheus.Histogram
	messagesTotal   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	solveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solve_duration_seconds",
		Help:    "Wall-clock duration of solver runs",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30},
	}, []string{"status"})

	solveTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solve_runs_total",
		Help: "Total solver runs by terminal status",
	}, []string{"status"})

	placedBlocks := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solve_placed_blocks",
		Help:    "Number of priority blocks placed per run",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	messagesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_messages_total",
		Help: "Work messages consumed by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, solveDuration, solveTotal, placedBlocks, messagesTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		solveDuration:   solveDuration,
		solveTotal:      solveTotal,
		placedBlocks:    placedBlocks,
		messagesTotal:   messagesTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSolveRun records one solver run.
func (m *MetricsService) ObserveSolveRun(status string, placed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.solveTotal.WithLabelValues(status).Inc()
	m.placedBlocks.Observe(float64(placed))
}

// ObserveBusMessage records one consumed work message by outcome.
func (m *MetricsService) ObserveBusMessage(outcome string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(outcome).Inc()
}
