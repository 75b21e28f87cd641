package eventbus

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/voxel-detach/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsExporter снимает счётчики шины в момент скрейпа.
// Сам является prometheus.Collector, фонового опроса нет.
type MetricsExporter struct {
	bus      EventBus
	gatherer prometheus.Gatherer
	server   *http.Server

	published *prometheus.Desc
	consumed  *prometheus.Desc
	dropped   *prometheus.Desc
	inflight  *prometheus.Desc
}

// NewMetricsExporter регистрирует экспортер, но не запускает HTTP-сервер.
// reg == nil означает дефолтный регистр Prometheus.
func NewMetricsExporter(bus EventBus, reg *prometheus.Registry) *MetricsExporter {
	me := &MetricsExporter{
		bus:       bus,
		published: prometheus.NewDesc("eventbus_messages_published_total", "Общее число опубликованных сообщений.", nil, nil),
		consumed:  prometheus.NewDesc("eventbus_messages_consumed_total", "Общее число доставленных подписчикам сообщений.", nil, nil),
		dropped:   prometheus.NewDesc("eventbus_messages_dropped_total", "Сообщений, отброшенных из-за ошибок или переполнения.", nil, nil),
		inflight:  prometheus.NewDesc("eventbus_messages_inflight", "Сообщений в очереди, ещё не разосланных.", nil, nil),
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	me.gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer, me.gatherer = reg, reg
	}
	registerer.MustRegister(me)
	return me
}

// Describe реализует prometheus.Collector
func (m *MetricsExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.published
	ch <- m.consumed
	ch <- m.dropped
	ch <- m.inflight
}

// Collect реализует prometheus.Collector
func (m *MetricsExporter) Collect(ch chan<- prometheus.Metric) {
	s := m.bus.Metrics()
	ch <- prometheus.MustNewConstMetric(m.published, prometheus.CounterValue, float64(s.Published))
	ch <- prometheus.MustNewConstMetric(m.consumed, prometheus.CounterValue, float64(s.Consumed))
	ch <- prometheus.MustNewConstMetric(m.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(m.inflight, prometheus.GaugeValue, float64(s.InFlight))
}

// StartHTTP запускает HTTP-эндпоинт /metrics на указанном адресе (например, ":2112").
// Метод неблокирующий: сервер стартует в отдельной горутине.
func (m *MetricsExporter) StartHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func(srv *http.Server) {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}(m.server)
}

// Stop останавливает HTTP-сервер, если он был запущен.
func (m *MetricsExporter) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
