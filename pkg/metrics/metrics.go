// Package metrics exposes the Prometheus collectors of the banking core on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups every metric the service records. A nil *Collector is valid and records nothing.
type Collector struct {
	registry         *prometheus.Registry
	loginAttempts    *prometheus.CounterVec
	transfers        *prometheus.CounterVec
	transferDuration prometheus.Histogram
	outboxPublished  *prometheus.CounterVec
	blockedUsers     prometheus.Gauge
	frozenAccounts   prometheus.Gauge
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "upbank_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "upbank_transfers_total",
			Help: "Transfer requests by outcome",
		}, []string{"outcome"}),
		transferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "upbank_transfer_duration_seconds",
			Help:    "Time taken to authorize and execute a transfer",
			Buckets: prometheus.DefBuckets,
		}),
		outboxPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "upbank_outbox_messages_total",
			Help: "Outbox messages handled by the dispatcher by result",
		}, []string{"result"}),
		blockedUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "upbank_blocked_users",
			Help: "Users currently blocked by the login guard",
		}),
		frozenAccounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "upbank_frozen_accounts",
			Help: "Accounts currently frozen",
		}),
	}
}

func (c *Collector) RecordLogin(outcome string) {
	if c == nil {
		return
	}
	c.loginAttempts.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordTransfer(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.transfers.WithLabelValues(outcome).Inc()
	c.transferDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordOutbox(result string) {
	if c == nil {
		return
	}
	c.outboxPublished.WithLabelValues(result).Inc()
}

// SetStatusGauges is refreshed by the scheduled metrics job.
func (c *Collector) SetStatusGauges(blockedUsers, frozenAccounts int) {
	if c == nil {
		return
	}
	c.blockedUsers.Set(float64(blockedUsers))
	c.frozenAccounts.Set(float64(frozenAccounts))
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
