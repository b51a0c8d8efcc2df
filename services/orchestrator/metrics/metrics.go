package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator's Prometheus collectors.
type Metrics struct {
	Turns       *prometheus.CounterVec
	Intents     *prometheus.CounterVec
	TurnLatency prometheus.Histogram

	Escalations        prometheus.Counter
	DuplicateTurns     prometheus.Counter
	SessionConflicts   *prometheus.CounterVec
	Failures           *prometheus.CounterVec
	CatalogUnavailable prometheus.Counter
	CatalogRefreshes   *prometheus.CounterVec

	// Delivery metrics
	OutboundMessages prometheus.Counter
	Notifications    *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_turns_total",
			Help: "Total number of user turns by outcome",
		}, []string{"outcome"}), // outcome: "ok", "duplicate", "failed"

		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_intents_total",
			Help: "Intents applied to sessions, after legality checks",
		}, []string{"intent", "source"}), // source: "extractor" or "keywords"

		TurnLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "orchestrator_turn_duration_seconds",
			Help:    "Time from receiving a turn to handing replies to delivery",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		Escalations: f.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_escalations_total",
			Help: "Conversations handed to human support",
		}),

		DuplicateTurns: f.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_duplicate_turns_total",
			Help: "Turns dropped as duplicates of a recent identical message",
		}),

		SessionConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_session_conflicts_total",
			Help: "Optimistic session save conflicts",
		}, []string{"resolved"}),

		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_failures_total",
			Help: "Turn failures by kind",
		}, []string{"kind"}),

		CatalogUnavailable: f.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_catalog_unavailable_total",
			Help: "Matching requests that could not read the scheme catalog",
		}),

		CatalogRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_catalog_refreshes_total",
			Help: "Scheduled catalog cache refreshes by result",
		}, []string{"result"}),

		OutboundMessages: f.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_outbound_messages_total",
			Help: "Messages published to channel adapters, after splitting",
		}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_notifications_total",
			Help: "Proactive notifications by type",
		}, []string{"type"}),
	}
}
