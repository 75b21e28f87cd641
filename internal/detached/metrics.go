package detached

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики группы матриц.
// Все методы безопасны для nil-получателя: группа без метрик просто ничего не пишет.
//
// Метрики:
// * detached_matrices: gauge, живые матрицы
// * detached_mesh_rebuilds_total: counter
// * detached_placements_total{result}: counter (placed/no_intersection/no_slot/blocked/error)
// * detached_resolve_duration_seconds: histogram
type Metrics struct {
	matrices   prometheus.Gauge
	rebuilds   prometheus.Counter
	placements *prometheus.CounterVec
	resolve    prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg. nil означает дефолтный регистр.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		matrices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "detached",
			Name:      "matrices",
			Help:      "Количество живых матриц чанков.",
		}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "detached",
			Name:      "mesh_rebuilds_total",
			Help:      "Общее число пересборок мешей чанков.",
		}),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detached",
			Name:      "placements_total",
			Help:      "Попытки установки блока по лучу.",
		}, []string{"result"}),
		resolve: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "detached",
			Name:      "resolve_duration_seconds",
			Help:      "Длительность поиска матрицы по мировой точке.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
	}
	reg.MustRegister(m.matrices, m.rebuilds, m.placements, m.resolve)
	return m
}

func (m *Metrics) setMatrices(n int) {
	if m == nil {
		return
	}
	m.matrices.Set(float64(n))
}

func (m *Metrics) meshRebuilt() {
	if m == nil {
		return
	}
	m.rebuilds.Inc()
}

func (m *Metrics) placement(result string) {
	if m == nil {
		return
	}
	m.placements.WithLabelValues(result).Inc()
}

func (m *Metrics) observeResolve(start time.Time) {
	if m == nil {
		return
	}
	m.resolve.Observe(time.Since(start).Seconds())
}
