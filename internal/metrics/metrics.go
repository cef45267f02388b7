package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobclient_jobs_submitted_total",
		Help: "Total number of jobs acknowledged by the master",
	})

	SubmitFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobclient_submit_failures_total",
		Help: "Total number of job submissions that were rejected or not acknowledged",
	})

	JobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobclient_jobs_completed_total",
		Help: "Total number of jobs observed in a terminal status, by status",
	}, []string{"status"})

	AwaitErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobclient_await_errors_total",
		Help: "Total number of completion waits that ended with a local error",
	})

	AwaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobclient_await_duration_seconds",
		Help:    "Time between sending WaitForJobComplete and its resolution in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	PendingRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jobclient_pending_requests",
		Help: "Current number of requests waiting for a response from the master",
	}, []string{"transport"})
)

// Master side.
var (
	MasterJobsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobmaster_jobs_accepted_total",
		Help: "Total number of jobs accepted by the master",
	})

	MasterJobsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobmaster_jobs_finished_total",
		Help: "Total number of jobs that reached a terminal status, by status",
	}, []string{"status"})

	MasterJobRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobmaster_job_run_duration_seconds",
		Help:    "Time taken to run jobs in seconds",
		Buckets: prometheus.DefBuckets,
	})

	MasterActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobmaster_active_workers",
		Help: "Current number of active workers",
	})

	MasterWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobmaster_waiters",
		Help: "Current number of open WaitForJobComplete requests",
	})
)
