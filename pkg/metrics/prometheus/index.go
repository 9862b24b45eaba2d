package prometheus

import (
	"github.com/marmos91/medioxide/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type indexMetrics struct {
	addsTotal         *prometheus.CounterVec
	bytesStored       prometheus.Counter
	lookupsTotal      *prometheus.CounterVec
	replicationsTotal *prometheus.CounterVec
	indexEntries      prometheus.Gauge
}

// NewIndexMetrics creates a Prometheus-backed metrics.IndexMetrics.
//
// Returns a no-op implementation if metrics are not enabled.
func NewIndexMetrics() metrics.IndexMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopIndexMetrics()
	}

	reg := metrics.GetRegistry()

	return &indexMetrics{
		addsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "medioxide_index_adds_total",
				Help: "Total number of AddFile calls by outcome",
			},
			[]string{"status"},
		),
		bytesStored: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "medioxide_index_bytes_stored_total",
				Help: "Total bytes written to the managed folder by AddFile",
			},
		),
		lookupsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "medioxide_index_lookups_total",
				Help: "Total number of index lookups by operation and result",
			},
			[]string{"operation", "result"},
		),
		replicationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "medioxide_index_replications_total",
				Help: "Total number of committed files replicated, by outcome",
			},
			[]string{"status"},
		),
		indexEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "medioxide_index_entries",
				Help: "Number of committed entries in the file index",
			},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *indexMetrics) RecordAdd(bytes int64, err error) {
	m.addsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.bytesStored.Add(float64(bytes))
	}
}

func (m *indexMetrics) RecordLookup(operation string, result string) {
	m.lookupsTotal.WithLabelValues(operation, result).Inc()
}

func (m *indexMetrics) RecordReplication(err error) {
	m.replicationsTotal.WithLabelValues(status(err)).Inc()
}

func (m *indexMetrics) SetIndexSize(entries int) {
	m.indexEntries.Set(float64(entries))
}
