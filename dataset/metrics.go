package dataset

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks pipeline activity. All methods are safe on a nil
// receiver so instrumentation stays optional.
type Metrics struct {
	fragmentsLoaded prometheus.Counter
	loadRetries     prometheus.Counter
	batchesEmitted  prometheus.Counter
	rowsEmitted     prometheus.Counter
	batchesDropped  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fragmentsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dataset_fragments_loaded_total",
			Help: "Number of fragments materialized into tables.",
		}),
		loadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dataset_fragment_load_retries_total",
			Help: "Number of fragment loads retried after a transient fault.",
		}),
		batchesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dataset_batches_emitted_total",
			Help: "Number of batches handed to the consumer.",
		}),
		rowsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dataset_rows_emitted_total",
			Help: "Number of rows handed to the consumer.",
		}),
		batchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dataset_batches_dropped_total",
			Help: "Number of batches dropped for being below the minimum size.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fragmentsLoaded, m.loadRetries, m.batchesEmitted, m.rowsEmitted, m.batchesDropped)
	}
	return m
}

func (m *Metrics) fragmentLoaded() {
	if m != nil {
		m.fragmentsLoaded.Inc()
	}
}

func (m *Metrics) loadRetried() {
	if m != nil {
		m.loadRetries.Inc()
	}
}

func (m *Metrics) batchEmitted(rows int) {
	if m != nil {
		m.batchesEmitted.Inc()
		m.rowsEmitted.Add(float64(rows))
	}
}

func (m *Metrics) batchDropped() {
	if m != nil {
		m.batchesDropped.Inc()
	}
}
