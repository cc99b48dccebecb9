package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consumer and responder counters, exposed on /metrics.
var (
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagestats_events_consumed_total",
		Help: "Domain events handled, by field and action.",
	}, []string{"field", "action"})

	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagestats_event_decode_failures_total",
		Help: "Queue messages rejected as malformed.",
	})

	ConditionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagestats_condition_failures_total",
		Help: "Decrements rejected by the non-negative guard, by field.",
	}, []string{"field"})

	StatsReplies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagestats_stats_replies_total",
		Help: "Stats query replies published.",
	})

	Requeues = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagestats_requeues_total",
		Help: "Messages requeued after a store failure.",
	})
)
