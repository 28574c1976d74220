package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuthzDecisions counts evaluator outcomes by scope kind and result.
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_authz_decisions_total",
			Help: "Authorization decisions by actor scope and outcome",
		},
		[]string{"scope", "outcome"},
	)

	// CrossStoreMisses counts identifier links that did not resolve.
	CrossStoreMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_cross_store_misses_total",
			Help: "Cross-store links that pointed at a missing or deleted row",
		},
		[]string{"link"},
	)

	// NotificationFailures counts swallowed notification errors by channel.
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_notification_failures_total",
			Help: "Best-effort notifications that failed to send",
		},
		[]string{"channel"},
	)

	// ReconcilerRepairs counts repairs made by the consistency reconciler.
	ReconcilerRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_reconciler_repairs_total",
			Help: "Inconsistencies repaired by the consistency reconciler",
		},
		[]string{"kind"},
	)
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
