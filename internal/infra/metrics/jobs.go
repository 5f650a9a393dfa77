package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsEnqueuedTotal, jobsProcessedTotal, jobDurationSeconds, fastPathTotal)
}

var jobsEnqueuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "chat_jobs_enqueued_total",
		Help: "Total number of chat jobs accepted by the enqueue gateway.",
	},
)

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_jobs_processed_total",
		Help: "Total number of chat jobs that reached a terminal status.",
	},
	[]string{"status"}, // 'complete', 'error'
)

var jobDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "chat_job_duration_seconds",
		Help:    "Claim-to-acknowledge duration of processed jobs.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
	},
)

var fastPathTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "chat_fast_path_total",
		Help: "Inputs answered by the command interceptor without queueing.",
	},
)

func IncEnqueued()           { jobsEnqueuedTotal.Inc() }
func IncFastPath()           { fastPathTotal.Inc() }
func IncJobProcessed(status string, d time.Duration) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
	jobDurationSeconds.Observe(d.Seconds())
}
