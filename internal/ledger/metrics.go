package ledger

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the posting path.
type Metrics struct {
	postings       *prometheus.CounterVec
	balanceUpdates *prometheus.CounterVec
	duration       prometheus.Histogram
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers posting metrics against the provided registerer. When
// the registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brightbooks_ledger_postings_total",
		Help: "Posting operations partitioned by outcome.",
	}, []string{"status"})
	balanceUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brightbooks_ledger_balance_updates_total",
		Help: "Per-account balance writes partitioned by outcome.",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "brightbooks_ledger_posting_duration_seconds",
		Help:    "Duration in seconds of posting operations.",
		Buckets: prometheus.DefBuckets,
	})
	registerer.MustRegister(postings, balanceUpdates, duration)
	return &Metrics{postings: postings, balanceUpdates: balanceUpdates, duration: duration}
}

func (m *Metrics) observePosting(status string, start time.Time) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(status).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeBalanceUpdate(status string) {
	if m == nil {
		return
	}
	m.balanceUpdates.WithLabelValues(status).Inc()
}
