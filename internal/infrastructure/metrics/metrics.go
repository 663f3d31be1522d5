// Package metrics exposes prometheus collectors for HTTP traffic, workflow
// transitions and notification delivery.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/justifi/internal/application/dispatcher"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/domain/event"
)

// Metrics owns a registry and the service collectors
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	buildInfo     *prometheus.GaugeVec
}

// New creates the collectors and registers them, with the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "justifi_workflow_transitions_total",
			Help: "Workflow status transitions by entity.",
		}, []string{"entity", "from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "justifi_notifications_total",
			Help: "Notification delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "justifi_build_info",
			Help: "Build information.",
		}, []string{"version"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.transitions,
		m.notifications,
		m.buildInfo,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetBuildInfo sets justifi_build_info{version} to 1
func (m *Metrics) SetBuildInfo(version string) {
	m.buildInfo.WithLabelValues(version).Set(1)
}

// Middleware records in-flight, totals and latency per route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.httpInFlight.Inc()
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpInFlight.Dec()
	}
}

// Delivered implements worker.DeliveryRecorder
func (m *Metrics) Delivered(channel string) {
	m.notifications.WithLabelValues(channel, "delivered").Inc()
}

// Failed implements worker.DeliveryRecorder
func (m *Metrics) Failed(channel string) {
	m.notifications.WithLabelValues(channel, "failed").Inc()
}

// Subscribe counts status transitions published on b
func (m *Metrics) Subscribe(b dispatcher.Bus) error {
	return errors.Join(
		b.Subscribe("metrics.justification_transitions", m.transitionHandler("justification"), event.TypeStatusChanged),
		b.Subscribe("metrics.task_transitions", m.transitionHandler("task"), event.TypeTaskStatusChanged),
		b.Subscribe("metrics.submissions", func(ctx context.Context, evt *event.Event) error {
			m.transitions.WithLabelValues("justification", "", string(entity.JustificationPendingApproval)).Inc()
			return nil
		}, event.TypeJustificationSubmitted),
	)
}

func (m *Metrics) transitionHandler(kind string) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		m.transitions.WithLabelValues(kind,
			evt.GetPayloadString(event.PayloadFrom),
			evt.GetPayloadString(event.PayloadTo)).Inc()
		return nil
	}
}
