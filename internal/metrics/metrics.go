package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wificonnector"

type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	skippedTicks    prometheus.Counter
	entitiesFetched *prometheus.CounterVec
	entitiesSkipped *prometheus.CounterVec
	pageErrors      *prometheus.CounterVec
	pointsWritten   *prometheus.CounterVec
	batchesDropped  prometheus.Counter
	lastSuccess     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Collection cycles by result",
		}, []string{"result"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of collection cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		skippedTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_ticks_total",
			Help:      "Ticks skipped because the previous cycle was still running",
		}),
		entitiesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_fetched_total",
			Help:      "Entities fetched from the controller",
		}, []string{"entity"}),
		entitiesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_skipped_total",
			Help:      "Entities skipped by validation",
		}, []string{"entity"}),
		pageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_errors_total",
			Help:      "Pages dropped after exhausting retries",
		}, []string{"entity"}),
		pointsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_written_total",
			Help:      "Points accepted by the store",
		}, []string{"result"}),
		batchesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_dropped_total",
			Help:      "Write batches dropped after exhausting retries",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that wrote without errors",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	m.cyclesTotal.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
	if result == "success" {
		m.lastSuccess.SetToCurrentTime()
	}
}

func (m *Metrics) SkippedTick() {
	m.skippedTicks.Inc()
}

func (m *Metrics) EntitiesFetched(entity string, n int) {
	m.entitiesFetched.WithLabelValues(entity).Add(float64(n))
}

func (m *Metrics) EntitiesSkipped(entity string, n int) {
	m.entitiesSkipped.WithLabelValues(entity).Add(float64(n))
}

func (m *Metrics) PageErrors(entity string, n int) {
	m.pageErrors.WithLabelValues(entity).Add(float64(n))
}

func (m *Metrics) PointsWritten(written, dropped int) {
	m.pointsWritten.WithLabelValues("written").Add(float64(written))
	m.pointsWritten.WithLabelValues("dropped").Add(float64(dropped))
}

func (m *Metrics) BatchesDropped(n int) {
	m.batchesDropped.Add(float64(n))
}
