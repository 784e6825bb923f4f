package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several runtimes can coexist in one
// test binary.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	connectAttempts *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "db_connect_attempts_total",
			Help: "Database connect attempts started by the readiness gate, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.connectAttempts,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveConnect(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.connectAttempts.WithLabelValues(result).Inc()
}

// ConnectAttempts is the counter for one result label; used by tests.
func (m *Metrics) ConnectAttempts(result string) prometheus.Counter {
	return m.connectAttempts.WithLabelValues(result)
}

func (m *Metrics) Requests(method string, status int) prometheus.Counter {
	return m.requests.WithLabelValues(method, strconv.Itoa(status))
}
