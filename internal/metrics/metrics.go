package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Admin Metrics
	AdminResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotune_admin_responses_total",
		Help: "Admin HTTP responses by route, method and status code",
	}, []string{"route", "method", "status_code"})

	// Autotune Metrics
	TuneCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotune_cache_lookups_total",
		Help: "Autotune cache lookups by result (hit or miss)",
	}, []string{"result"})

	TuneBenchmarkPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autotune_benchmark_passes_total",
		Help: "Number of full benchmarking passes over an operation set",
	})

	TuneBenchmarkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotune_benchmark_failures_total",
		Help: "Candidates whose benchmark run failed",
	}, []string{"candidate"})

	TuneCandidateMedian = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autotune_candidate_median_seconds",
		Help:    "Median duration of benchmarked autotune candidates",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12), // 1µs to ~4s
	}, []string{"candidate"})

	TuneWinners = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotune_winners_total",
		Help: "Number of times each candidate won an autotune pass",
	}, []string{"candidate"})

	TuneCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autotune_cache_entries",
		Help: "Number of keys currently cached by the tuner",
	})

	// Compute Metrics
	ComputeDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compute_dispatches_total",
		Help: "Kernel dispatches by kernel name and channel strategy",
	}, []string{"kernel", "channel"})

	ComputeMemoryUsedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "compute_memory_used_bytes",
		Help: "Device memory currently allocated through the compute client",
	})
)
