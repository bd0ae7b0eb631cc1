package auth

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRecorder receives guard and dispatch events.
type MetricsRecorder interface {
	RecordGuardDecision(transport Transport, outcome string, duration time.Duration)
	RecordRevocationError()
	RecordRoleDecision(operation string, allowed bool)
	RecordPush(provider string, success, failure int)
}

// Collector records metrics into prometheus
type Collector struct {
	guardDecisions  *prometheus.CounterVec
	guardLatency    *prometheus.HistogramVec
	revocationError prometheus.Counter
	roleDecisions   *prometheus.CounterVec
	pushMessages    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_guard_decisions_total",
			Help: "Auth guard decisions by transport and outcome.",
		}, []string{"transport", "outcome"}),
		guardLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_guard_duration_seconds",
			Help:    "Time spent in the auth guard.",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		revocationError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_revocation_errors_total",
			Help: "Revocation lookups that failed.",
		}),
		roleDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_role_decisions_total",
			Help: "Role guard decisions by operation.",
		}, []string{"operation", "allowed"}),
		pushMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_messages_total",
			Help: "Push messages by provider and result.",
		}, []string{"provider", "result"}),
	}

	reg.MustRegister(
		c.guardDecisions,
		c.guardLatency,
		c.revocationError,
		c.roleDecisions,
		c.pushMessages,
	)

	return c
}

func (c *Collector) RecordGuardDecision(transport Transport, outcome string, duration time.Duration) {
	if transport == "" {
		transport = "unknown"
	}
	c.guardDecisions.WithLabelValues(string(transport), outcome).Inc()
	c.guardLatency.WithLabelValues(string(transport)).Observe(duration.Seconds())
}

func (c *Collector) RecordRevocationError() {
	c.revocationError.Inc()
}

func (c *Collector) RecordRoleDecision(operation string, allowed bool) {
	label := "false"
	if allowed {
		label = "true"
	}
	c.roleDecisions.WithLabelValues(operation, label).Inc()
}

func (c *Collector) RecordPush(provider string, success, failure int) {
	c.pushMessages.WithLabelValues(provider, "success").Add(float64(success))
	c.pushMessages.WithLabelValues(provider, "failure").Add(float64(failure))
}

// MetricsHandler serves the prometheus scrape endpoint
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type noopMetrics struct{}

func (noopMetrics) RecordGuardDecision(Transport, string, time.Duration) {}
func (noopMetrics) RecordRevocationError()                               {}
func (noopMetrics) RecordRoleDecision(string, bool)                      {}
func (noopMetrics) RecordPush(string, int, int)                          {}

func resolveMetrics(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
