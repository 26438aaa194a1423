// Package metrics exposes prometheus counters for the ledger's externally
// observable outcomes: authentications, lockout rejections and money
// movement. A nil *Collector is valid and records nothing, so wiring metrics
// stays optional in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	authSuccess           prometheus.Counter
	authFailure           prometheus.Counter
	blockedRejections     prometheus.Counter
	withdrawals           prometheus.Counter
	topUps                prometheus.Counter
	rejectedAuthorization prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	return &Collector{
		registry: registry,
		authSuccess: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "card_auth_success_total",
			Help: "Successful card PIN verifications",
		}),
		authFailure: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "card_auth_failure_total",
			Help: "Failed card PIN verifications",
		}),
		blockedRejections: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "card_blocked_rejections_total",
			Help: "Operations rejected because the card is blocked",
		}),
		withdrawals: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Committed withdrawals",
		}),
		topUps: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "top_ups_total",
			Help: "Committed top-ups",
		}),
		rejectedAuthorization: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "authorization_rejected_total",
			Help: "Withdrawals rejected by the balance authorization rules",
		}),
	}
}

func (c *Collector) AuthSuccess() {
	if c == nil {
		return
	}
	c.authSuccess.Inc()
}

func (c *Collector) AuthFailure() {
	if c == nil {
		return
	}
	c.authFailure.Inc()
}

func (c *Collector) BlockedRejection() {
	if c == nil {
		return
	}
	c.blockedRejections.Inc()
}

func (c *Collector) Withdrawal() {
	if c == nil {
		return
	}
	c.withdrawals.Inc()
}

func (c *Collector) TopUp() {
	if c == nil {
		return
	}
	c.topUps.Inc()
}

func (c *Collector) RejectedAuthorization() {
	if c == nil {
		return
	}
	c.rejectedAuthorization.Inc()
}

// Handler serves the collector's registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
