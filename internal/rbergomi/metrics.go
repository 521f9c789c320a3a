package rbergomi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics, registered once on the default registry. The server
// exposes them on /metrics; CLI runs update them too, at negligible cost.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbergomi_runs_total",
		Help: "Pricing runs by payoff mode, entropy source and outcome.",
	}, []string{"payoff", "sampler", "outcome"})

	samplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbergomi_samples_total",
		Help: "Monte-Carlo samples simulated across all runs.",
	})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rbergomi_run_duration_seconds",
		Help:    "Wall-clock duration of pricing runs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"payoff"})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rbergomi_active_workers",
		Help: "Workers currently simulating samples.",
	})

	runProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rbergomi_run_progress",
		Help: "Fraction of samples completed in the current run.",
	})
)
