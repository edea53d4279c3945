package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain metrics using Prometheus.
type Recorder struct {
	analysesTotal       *prometheus.CounterVec
	drawsTotal          prometheus.Counter
	acceptanceRate      *prometheus.GaugeVec
	runDuration         prometheus.Histogram
	convergenceFailures prometheus.Counter
	pricesIngested      prometheus.Counter
}

// New creates a metrics recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a metrics recorder on a custom registerer (useful for
// tests).
func NewWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brent_analyses_total",
				Help: "Total number of change-point analyses by outcome",
			},
			[]string{"outcome"},
		),
		drawsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "brent_sampler_draws_total",
				Help: "Total number of retained posterior draws across all runs",
			},
		),
		acceptanceRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "brent_sampler_acceptance_rate",
				Help: "Post-warmup acceptance rate of the last run per proposal kind",
			},
			[]string{"kind"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "brent_analysis_duration_seconds",
				Help:    "Wall-clock duration of analysis runs in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		convergenceFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "brent_convergence_failures_total",
				Help: "Total number of runs that failed the convergence gate",
			},
		),
		pricesIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "brent_prices_ingested_total",
				Help: "Total number of price observations ingested",
			},
		),
	}
}

// RecordAnalysis records a completed analysis run by outcome
// ("succeeded", "not_converged", "failed").
func (r *Recorder) RecordAnalysis(outcome string) {
	r.analysesTotal.WithLabelValues(outcome).Inc()
}

// RecordDraws records retained posterior draws.
func (r *Recorder) RecordDraws(n int) {
	r.drawsTotal.Add(float64(n))
}

// RecordAcceptance records an acceptance rate for a proposal kind
// ("params" or "bounds").
func (r *Recorder) RecordAcceptance(kind string, rate float64) {
	r.acceptanceRate.WithLabelValues(kind).Set(rate)
}

// RecordRunDuration records run wall-clock time.
func (r *Recorder) RecordRunDuration(d time.Duration) {
	r.runDuration.Observe(d.Seconds())
}

// RecordConvergenceFailure counts a run that missed a convergence threshold.
func (r *Recorder) RecordConvergenceFailure() {
	r.convergenceFailures.Inc()
}

// RecordPricesIngested counts ingested price observations.
func (r *Recorder) RecordPricesIngested(n int) {
	r.pricesIngested.Add(float64(n))
}
