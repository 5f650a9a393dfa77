package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(entriesReclaimedTotal, claimConflictsTotal, activeConversations)
}

var entriesReclaimedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "stream_entries_reclaimed_total",
		Help: "Stale claims redelivered by the recovery sweeper.",
	},
)

var claimConflictsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "stream_claim_conflicts_total",
		Help: "Claim attempts that lost to a live claim of another consumer.",
	},
)

var activeConversations = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "stream_active_conversations",
		Help: "Conversations with unread or pending log entries, last sweep.",
	},
)

func IncReclaimed()              { entriesReclaimedTotal.Inc() }
func IncClaimConflict()          { claimConflictsTotal.Inc() }
func SetActiveConversations(n int) { activeConversations.Set(float64(n)) }
