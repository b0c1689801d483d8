package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsStalledTotal) }

var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modeling_jobs_processed_total",
			Help: "Total number of modeling jobs finished, labeled by status.",
		},
		[]string{"status"}, // 'COMPLETED', 'FAILED', 'CANCELLED'
	)

	jobsStalledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modeling_jobs_stalled_total",
			Help: "Jobs marked STALLED by the startup recovery sweep.",
		},
	)
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(status).Inc()
}

func AddStalledJobs(n int) {
	jobsStalledTotal.Add(float64(n))
}
