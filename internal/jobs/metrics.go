package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queueDepth — items currently waiting in the work queue.
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "photosync_queue_depth",
		Help: "Number of work items waiting in the queue",
	})

	// jobsCompletedTotal — work items that ran to completion.
	jobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photosync_jobs_completed_total",
		Help: "Total work items that finished without an unhandled failure",
	})

	// jobsFailedTotal — work items whose body failed or panicked.
	jobsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photosync_jobs_failed_total",
		Help: "Total work items that ended with an unhandled failure",
	})
)
