// Package obsmetrics exposes operational Prometheus metrics for the
// mission runtime: mission counts by state, turn throughput/latency, and
// stall counts. It covers operational counters only, not cost or billing
// arithmetic.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// MissionsByState tracks the current count of missions in each state.
	MissionsByState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "missionrt",
		Name:      "missions_by_state",
		Help:      "Current number of missions in each state.",
	}, []string{"state"})

	// TurnsTotal counts completed turns by backend and terminal reason.
	TurnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "missionrt",
		Name:      "turns_total",
		Help:      "Total turns executed, by backend and terminal reason.",
	}, []string{"backend", "terminal_reason"})

	// TurnDurationSeconds observes wall-clock turn duration by backend.
	TurnDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "missionrt",
		Name:      "turn_duration_seconds",
		Help:      "Turn execution duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend"})

	// StallsTotal counts missions observed Stalled by the Health Supervisor.
	StallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "missionrt",
		Name:      "stalls_total",
		Help:      "Total number of times check_health observed a stalled mission.",
	})
)

// MustRegister registers all runtime metrics against reg. Call once at
// process startup with a prometheus.Registry (or prometheus.DefaultRegisterer).
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(MissionsByState, TurnsTotal, TurnDurationSeconds, StallsTotal)
}
