package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "taxlexia"
	subsystem = "pipeline"
)

// Pipeline holds the batch pipeline collectors. A nil *Pipeline is valid
// and records nothing.
type Pipeline struct {
	files         *prometheus.CounterVec
	analyses      *prometheus.CounterVec
	vendorUpserts prometheus.Counter
	fileDuration  prometheus.Histogram
}

// NewPipeline creates the collectors and registers them on reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	m := &Pipeline{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "files_total",
			Help:      "Files processed, by text extraction method.",
		}, []string{"method"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analyses_total",
			Help:      "Invoice analyses, by outcome.",
		}, []string{"outcome"}),
		vendorUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "vendor_upserts_total",
			Help:      "Vendor history records written.",
		}),
		fileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "file_duration_seconds",
			Help:      "Wall time to extract and analyze one file.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}),
	}
	for _, c := range []prometheus.Collector{m.files, m.analyses, m.vendorUpserts, m.fileDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveFile records one processed file.
func (m *Pipeline) ObserveFile(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(method).Inc()
	m.analyses.WithLabelValues(outcome).Inc()
	m.fileDuration.Observe(d.Seconds())
}

func (m *Pipeline) VendorUpserted() {
	if m == nil {
		return
	}
	m.vendorUpserts.Inc()
}
