package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all kernel Prometheus metrics.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RouteOutcomes      *prometheus.CounterVec
	ContractViolations prometheus.Counter
	RateLimitedTotal   *prometheus.CounterVec
	CircuitState       *prometheus.GaugeVec
	RouteReloads       *prometheus.CounterVec
}

// NewMetrics creates and registers all kernel metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_requests_total",
				Help: "Total number of requests processed.",
			},
			[]string{"status", "method"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "kernel_request_duration_seconds",
				Help: "Request duration in seconds.",
				// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		RouteOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_route_outcomes_total",
				Help: "Route dispatch outcomes: found, not_found, method_not_allowed, unknown.",
			},
			[]string{"outcome"},
		),
		ContractViolations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_contract_violations_total",
				Help: "Controllers that returned something other than a response envelope.",
			},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_rate_limited_total",
				Help: "Total number of rate-limited requests.",
			},
			[]string{"client"},
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kernel_circuit_state",
				Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open.",
			},
			[]string{"route"},
		),
		RouteReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_route_reloads_total",
				Help: "Route file reload attempts by result.",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RouteOutcomes,
		m.ContractViolations,
		m.RateLimitedTotal,
		m.CircuitState,
		m.RouteReloads,
	)

	return m
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the metrics of a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
