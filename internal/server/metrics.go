package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tenderscan/internal/engine"
)

var (
	// RunsTotal counts collection runs by outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenderscan",
			Name:      "runs_total",
			Help:      "Total number of collection runs",
		},
		[]string{"outcome"},
	)

	// PagesTotal counts listing pages by outcome.
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenderscan",
			Name:      "pages_total",
			Help:      "Total number of listing pages by outcome",
		},
		[]string{"outcome"},
	)

	// RetriesTotal counts extra page fetch attempts.
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tenderscan",
			Name:      "page_retries_total",
			Help:      "Total number of page fetch retries",
		},
	)

	// RecordsReturned observes how many tenders a run delivered.
	RecordsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tenderscan",
			Name:      "run_records",
			Help:      "Distribution of tenders returned per run",
			Buckets:   []float64{0, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// RunDuration measures run duration.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tenderscan",
			Name:      "run_duration_seconds",
			Help:      "Duration of collection runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

// Run outcomes.
const (
	outcomeOK        = "ok"
	outcomePartial   = "partial"
	outcomeExhausted = "exhausted"
	outcomeError     = "error"
)

// RecordRun records one finished run.
func RecordRun(outcome string, s *engine.Summary) {
	RunsTotal.WithLabelValues(outcome).Inc()
	if s == nil {
		return
	}
	PagesTotal.WithLabelValues("fetched").Add(float64(s.PagesFetched))
	PagesTotal.WithLabelValues("failed").Add(float64(s.PagesFailed))
	PagesTotal.WithLabelValues("discarded").Add(float64(s.PagesDiscarded))
	RetriesTotal.Add(float64(s.Retries))
	RecordsReturned.Observe(float64(s.Count()))
	RunDuration.Observe(s.Duration().Seconds())
}
