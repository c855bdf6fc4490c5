// Package metrics exposes Prometheus collectors for the whaling view.
// All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "whaling"

type Metrics struct {
	registry        *prometheus.Registry
	selections      *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	setYearDuration prometheus.Histogram
	subscribers     prometheus.Gauge
	recordsLoaded   prometheus.Gauge
	amqpMessages    *prometheus.CounterVec
	httpRejected    *prometheus.CounterVec
}

// New registers collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "year_selections_total",
			Help:      "Year selections applied to the view, by source.",
		}, []string{"source"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "year_selections_rejected_total",
			Help:      "Year selections rejected before touching the view, by reason.",
		}, []string{"reason"}),
		setYearDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "set_year_duration_seconds",
			Help:      "Time spent applying a year selection synchronously.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Connected server-sent event subscribers.",
		}),
		recordsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_loaded",
			Help:      "Records loaded from the data source at startup.",
		}),
		amqpMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amqp_messages_total",
			Help:      "AMQP year selection messages, by outcome.",
		}, []string{"outcome"}),
		httpRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_rejected_total",
			Help:      "HTTP requests refused by the security middleware, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.selections,
		m.rejected,
		m.setYearDuration,
		m.subscribers,
		m.recordsLoaded,
		m.amqpMessages,
		m.httpRejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveSelection(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(source).Inc()
	m.setYearDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *Metrics) SetRecordsLoaded(n int) {
	if m == nil {
		return
	}
	m.recordsLoaded.Set(float64(n))
}

func (m *Metrics) ObserveAMQPMessage(outcome string) {
	if m == nil {
		return
	}
	m.amqpMessages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTPRejected(reason string) {
	if m == nil {
		return
	}
	m.httpRejected.WithLabelValues(reason).Inc()
}
