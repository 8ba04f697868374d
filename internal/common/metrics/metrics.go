// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	MatchingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_runs_total",
			Help: "Matching runs by terminal state",
		},
		[]string{"state"},
	)

	MatchingCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_candidates_total",
			Help: "Candidate records retrieved per tier before deduplication",
		},
		[]string{"tier"},
	)

	MatchingMatchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_matches_created_total",
			Help: "Match rows inserted",
		},
	)

	MatchingFuzzyTierSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_fuzzy_tier_skipped_total",
			Help: "Runs where the fuzzy tier was unavailable",
		},
	)

	MatchingRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matching_run_duration_seconds",
			Help:    "Duration of a matching run per stage",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	BatchProfilesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_batch_profiles_total",
			Help: "Profiles selected by batch matching, by dispatch result",
		},
		[]string{"result"},
	)
)
