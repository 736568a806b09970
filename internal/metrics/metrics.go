// Package metrics exposes Prometheus counters for capsule operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CapsulesCreated counts successfully created capsules.
	CapsulesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeegg_capsules_created_total",
		Help: "Number of time capsules created.",
	})

	// UnlockAttempts counts unlock attempts by verdict reason.
	UnlockAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeegg_unlock_attempts_total",
		Help: "Number of capsule unlock attempts, labelled by verdict reason.",
	}, []string{"reason"})

	// NotificationsDispatched counts dispatched notification records by kind.
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeegg_notifications_dispatched_total",
		Help: "Number of notification records dispatched, labelled by kind.",
	}, []string{"kind"})
)

// Handler returns the HTTP handler serving the Prometheus text exposition.
func Handler() http.Handler {
	return promhttp.Handler()
}
