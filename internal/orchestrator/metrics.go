package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for match batches.
type Metrics struct {
	BatchesTotal    *prometheus.CounterVec
	BatchesInFlight prometheus.Gauge
	ItemsTotal      *prometheus.CounterVec
	ItemDuration    *prometheus.HistogramVec
	RejectedTotal   prometheus.Counter
}

// NewMetrics registers the match metrics once per process.
//
// Metrics:
//   - docmatch_match_batches_total{result} - batches finished, result is "complete" or "partial"
//   - docmatch_match_batches_in_flight - batches currently running
//   - docmatch_match_items_total{state,reason} - identifiers classified
//   - docmatch_match_item_duration_seconds{state} - time spent per identifier
//   - docmatch_match_rejected_total - batches refused because one was running
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			BatchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "docmatch_match_batches_total",
					Help: "Total number of match batches finished",
				},
				[]string{"result"},
			),
			BatchesInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "docmatch_match_batches_in_flight",
					Help: "Number of match batches currently running",
				},
			),
			ItemsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "docmatch_match_items_total",
					Help: "Total number of identifiers classified",
				},
				[]string{"state", "reason"},
			),
			ItemDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "docmatch_match_item_duration_seconds",
					Help:    "Time spent matching one identifier",
					Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10},
				},
				[]string{"state"},
			),
			RejectedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "docmatch_match_rejected_total",
					Help: "Total number of batches rejected because another was in progress",
				},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observeItem(o Outcome) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(string(o.State), string(o.Reason)).Inc()
	m.ItemDuration.WithLabelValues(string(o.State)).Observe(o.Elapsed.Seconds())
}

func (m *Metrics) observeBatch(r *BatchResult) {
	if m == nil {
		return
	}
	result := "partial"
	if r.Complete() {
		result = "complete"
	}
	m.BatchesTotal.WithLabelValues(result).Inc()
}
