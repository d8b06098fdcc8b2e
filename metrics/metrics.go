// Package metrics provides Prometheus metrics for the signal bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signalhub"

// Delivery results recorded on SignalsReceived.
const (
	ResultDelivered = "delivered"
	ResultUnknown   = "unknown"
	ResultDropped   = "dropped"
)

// UnknownSignal is the signal label for inbound names with no receiver.
// Client-chosen names never become label values.
const UnknownSignal = "_unknown"

// Metrics holds the bridge collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	SignalsReceived  *prometheus.CounterVec
	SignalsEmitted   *prometheus.CounterVec
	DispatchFailures prometheus.Counter
	Connections      prometheus.Gauge
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		SignalsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_received_total",
			Help:      "Inbound signals by name and delivery result",
		}, []string{"signal", "result"}),
		SignalsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_emitted_total",
			Help:      "Outbound signals handed to the transport",
		}, []string{"signal"}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Internal dispatches to a responder actor that failed",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open front-end connections",
		}),
	}
	m.reg.MustRegister(m.SignalsReceived, m.SignalsEmitted, m.DispatchFailures, m.Connections)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveReceived counts one inbound signal and its delivery result.
func (m *Metrics) ObserveReceived(signal, result string) {
	if m == nil {
		return
	}
	m.SignalsReceived.WithLabelValues(signal, result).Inc()
}

// ObserveEmitted counts one outbound signal handed to the transport.
func (m *Metrics) ObserveEmitted(signal string) {
	if m == nil {
		return
	}
	m.SignalsEmitted.WithLabelValues(signal).Inc()
}

// ObserveDispatchFailure counts one failed internal dispatch.
func (m *Metrics) ObserveDispatchFailure() {
	if m == nil {
		return
	}
	m.DispatchFailures.Inc()
}

// ConnectionOpened increments the open connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

// ConnectionClosed decrements the open connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}
