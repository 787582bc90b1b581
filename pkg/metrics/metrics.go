package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookstore"

// Checkout outcomes recorded by the order engine.
const (
	CheckoutPlaced   = "placed"
	CheckoutInvalid  = "invalid"
	CheckoutBusy     = "busy"
	CheckoutConflict = "conflict"
	CheckoutFailed   = "failed"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	Checkouts *prometheus.CounterVec
	Relayed   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewServerMetrics registers collectors on a private registry so repeated
// construction in tests does not panic on duplicate registration.
func NewServerMetrics() *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Order placement attempts by outcome.",
	}, []string{"result"})
	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_relayed_total",
		Help:      "Outbox events handed to the broker by outcome.",
	}, []string{"result"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		requests, latency, checkouts, relayed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &ServerMetrics{
		Requests:  requests,
		LatencyMS: latency,
		Checkouts: checkouts,
		Relayed:   relayed,
		registry:  registry,
	}
}

// ObserveCheckout is nil-safe so services can run without metrics.
func (m *ServerMetrics) ObserveCheckout(result string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
}

func (m *ServerMetrics) ObserveRelay(result string) {
	if m == nil {
		return
	}
	m.Relayed.WithLabelValues(result).Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
