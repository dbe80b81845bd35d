package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scrapeforge/crawlcore/pkg/metrics"
)

func init() {
	metrics.RegisterSnapshotMetricsConstructor(newSnapshotMetrics)
}

type snapshotMetrics struct {
	memoryUsedRatio       prometheus.Gauge
	eventLoopExceededMs   prometheus.Gauge
	cpuOverloaded         prometheus.Gauge
	systemOverloadDecided *prometheus.CounterVec
}

func newSnapshotMetrics() metrics.SnapshotMetrics {
	reg := metrics.GetRegistry()

	return &snapshotMetrics{
		memoryUsedRatio: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlcore_snapshot_memory_used_ratio",
				Help: "Most recent sampled memory-used ratio",
			},
		),
		eventLoopExceededMs: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlcore_snapshot_event_loop_exceeded_milliseconds",
				Help: "Most recent event-loop delay sample, milliseconds over threshold",
			},
		),
		cpuOverloaded: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlcore_snapshot_cpu_overloaded",
				Help: "1 if the most recent CPU sample was overloaded, else 0",
			},
		),
		systemOverloadDecided: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcore_snapshot_system_overload_decisions_total",
				Help: "Total number of overload evaluations by dimension and outcome",
			},
			[]string{"dimension", "overloaded"},
		),
	}
}

func (m *snapshotMetrics) RecordMemoryUsedRatio(ratio float64) {
	if m == nil {
		return
	}
	m.memoryUsedRatio.Set(ratio)
}

func (m *snapshotMetrics) RecordEventLoopExceededMillis(millis int64) {
	if m == nil {
		return
	}
	m.eventLoopExceededMs.Set(float64(millis))
}

func (m *snapshotMetrics) RecordCPUOverload(overloaded bool) {
	if m == nil {
		return
	}
	if overloaded {
		m.cpuOverloaded.Set(1)
	} else {
		m.cpuOverloaded.Set(0)
	}
}

func (m *snapshotMetrics) RecordSystemOverloaded(dimension string, overloaded bool) {
	if m == nil {
		return
	}
	label := "false"
	if overloaded {
		label = "true"
	}
	m.systemOverloadDecided.WithLabelValues(dimension, label).Inc()
}
