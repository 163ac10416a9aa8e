package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — счётчики приёма payload и работы с хранилищем.
// Методы безопасны для nil-получателя.
type Metrics struct {
	IngestTotal    *prometheus.CounterVec
	IngestDuration *prometheus.HistogramVec
	ChangeSetSize  *prometheus.HistogramVec
	StoreErrors    *prometheus.CounterVec
	CatalogReloads *prometheus.CounterVec
}

// New регистрирует метрики в реестре по умолчанию.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry — для тестов и нескольких экземпляров в одном процессе.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IngestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rekord_ingest_total",
			Help: "Payload ingestions by entity kind, operation and outcome",
		}, []string{"kind", "op", "outcome"}),
		IngestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rekord_ingest_duration_seconds",
			Help:    "Duration of ingest + persist operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind", "op"}),
		ChangeSetSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rekord_changeset_columns",
			Help:    "Number of columns in computed change sets",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}, []string{"kind", "op"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rekord_store_errors_total",
			Help: "Storage errors by entity kind and operation",
		}, []string{"kind", "op"}),
		CatalogReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rekord_catalog_reloads_total",
			Help: "Descriptor catalog reloads by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveIngest записывает исход и длительность. Вызывать с time.Now() начала операции.
func (m *Metrics) ObserveIngest(kind, op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.IngestTotal.WithLabelValues(kind, op, outcome).Inc()
	m.IngestDuration.WithLabelValues(kind, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveChangeSet(kind, op string, columns int) {
	if m == nil {
		return
	}
	m.ChangeSetSize.WithLabelValues(kind, op).Observe(float64(columns))
}

func (m *Metrics) IncrementStoreError(kind, op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(kind, op).Inc()
}

func (m *Metrics) IncrementReload(outcome string) {
	if m == nil {
		return
	}
	m.CatalogReloads.WithLabelValues(outcome).Inc()
}
