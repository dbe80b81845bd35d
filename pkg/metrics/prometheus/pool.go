package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scrapeforge/crawlcore/pkg/metrics"
)

func init() {
	metrics.RegisterPoolMetricsConstructor(newPoolMetrics)
}

type poolMetrics struct {
	desiredConcurrency prometheus.Gauge
	runningCount       prometheus.Gauge
	scaleOperations    *prometheus.CounterVec
	taskFailures       prometheus.Counter
}

func newPoolMetrics() metrics.PoolMetrics {
	reg := metrics.GetRegistry()

	return &poolMetrics{
		desiredConcurrency: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlcore_pool_desired_concurrency",
				Help: "Current target concurrency of the autoscaled pool",
			},
		),
		runningCount: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlcore_pool_running_count",
				Help: "Current number of tasks in flight",
			},
		),
		scaleOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcore_pool_scale_operations_total",
				Help: "Total number of scale-up/scale-down decisions",
			},
			[]string{"direction"}, // "up", "down"
		),
		taskFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "crawlcore_pool_task_failures_total",
				Help: "Total number of RunTask failures",
			},
		),
	}
}

func (m *poolMetrics) RecordDesiredConcurrency(n int) {
	if m == nil {
		return
	}
	m.desiredConcurrency.Set(float64(n))
}

func (m *poolMetrics) RecordRunningCount(n int) {
	if m == nil {
		return
	}
	m.runningCount.Set(float64(n))
}

func (m *poolMetrics) RecordScaleUp(newDesired int) {
	if m == nil {
		return
	}
	m.scaleOperations.WithLabelValues("up").Inc()
	m.desiredConcurrency.Set(float64(newDesired))
}

func (m *poolMetrics) RecordScaleDown(newDesired int) {
	if m == nil {
		return
	}
	m.scaleOperations.WithLabelValues("down").Inc()
	m.desiredConcurrency.Set(float64(newDesired))
}

func (m *poolMetrics) RecordTaskFailure() {
	if m == nil {
		return
	}
	m.taskFailures.Inc()
}
