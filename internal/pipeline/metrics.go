package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/docmatch/internal/extraction"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for pipeline runs.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	OCRConfidence   prometheus.Histogram
	FieldsExtracted *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics once per process.
//
// Metrics:
//   - docmatch_pipeline_runs_total{result} - runs by outcome: success, cancelled, ocr_failed, busy, error
//   - docmatch_pipeline_run_duration_seconds - wall time of a run
//   - docmatch_ocr_confidence - OCR confidence of successful recognitions (0..100)
//   - docmatch_extraction_values_total{field} - values extracted per field
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "docmatch_pipeline_runs_total",
					Help: "Total number of document processing runs",
				},
				[]string{"result"},
			),
			RunDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "docmatch_pipeline_run_duration_seconds",
					Help:    "Wall time of a document processing run",
					Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
				},
			),
			OCRConfidence: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "docmatch_ocr_confidence",
					Help:    "Confidence reported for successful OCR runs",
					Buckets: []float64{10, 25, 50, 60, 70, 80, 90, 95, 100},
				},
			),
			FieldsExtracted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "docmatch_extraction_values_total",
					Help: "Total number of values extracted per field",
				},
				[]string{"field"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observeRun(result string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RunDuration.Observe(seconds)
}

func (m *Metrics) observeRecord(rec extraction.Record, confidence float64) {
	if m == nil {
		return
	}
	m.OCRConfidence.Observe(confidence)
	for _, f := range []extraction.Field{extraction.FieldNames, extraction.FieldIDs, extraction.FieldPhones} {
		m.FieldsExtracted.WithLabelValues(string(f)).Add(float64(len(rec.Values(f))))
	}
}
