package inventory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ledger's Prometheus collectors. A nil *Metrics is valid and records nothing.
// 台帳のPrometheusメトリクス（nilの場合は何も記録しない）
type Metrics struct {
	operationsProcessed *prometheus.CounterVec
	movementsRecorded   *prometheus.CounterVec
	applyDuration       *prometheus.HistogramVec
	lowStockProducts    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg
// メトリクスを作成してレジストリに登録
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexinventory",
			Name:      "operations_processed_total",
			Help:      "Operations processed by type and outcome.",
		}, []string{"type", "outcome"}),
		movementsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexinventory",
			Name:      "stock_movements_total",
			Help:      "Stock movements appended to the ledger by kind.",
		}, []string{"kind"}),
		applyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexinventory",
			Name:      "ledger_apply_duration_seconds",
			Help:      "Latency of ledger change-set writes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		lowStockProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nexinventory",
			Name:      "low_stock_products",
			Help:      "Products at or below their minimum level after the last mutation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operationsProcessed, m.movementsRecorded, m.applyDuration, m.lowStockProducts)
	}
	return m
}

func (m *Metrics) observeOperation(t OperationType, outcome TransitionOutcome) {
	if m == nil {
		return
	}
	m.operationsProcessed.WithLabelValues(string(t), outcome.String()).Inc()
}

func (m *Metrics) observeMovements(movements []StockMovement) {
	if m == nil {
		return
	}
	for _, mv := range movements {
		m.movementsRecorded.WithLabelValues(string(mv.Kind)).Inc()
	}
}

func (m *Metrics) observeApply(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.applyDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) setLowStock(products []Product) {
	if m == nil {
		return
	}
	n := 0
	for _, p := range products {
		if AtOrBelowMin(p) {
			n++
		}
	}
	m.lowStockProducts.Set(float64(n))
}
