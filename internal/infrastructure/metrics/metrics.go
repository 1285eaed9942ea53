package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IssuanceTotal tracks issuance requests by result (created, resent,
	// delivery_failed, error).
	IssuanceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "licensegate_issuance_total",
		Help: "Total number of license issuance requests processed",
	}, []string{"result"})

	// ValidationsTotal tracks validation requests by activation outcome.
	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "licensegate_validations_total",
		Help: "Total number of license validation requests processed",
	}, []string{"outcome"})

	// NotifierFailures counts key delivery failures surfaced to callers
	NotifierFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "licensegate_notifier_failures_total",
		Help: "Total number of license key delivery failures",
	})

	// RateLimitedTotal counts issuance requests rejected by the limiter
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "licensegate_rate_limited_total",
		Help: "Total number of issuance requests rejected by the rate limiter",
	})

	// DBConnectionsActive tracks open database connections
	DBConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "licensegate_db_connections_active",
		Help: "Number of active database connections",
	})
)
