package metrics

// SnapshotMetrics provides observability for the Snapshotter/SystemStatus
// resource-pressure sampling loop.
//
// Pass nil to disable metrics collection with zero overhead.
type SnapshotMetrics interface {
	// RecordMemoryUsedRatio records the most recent memory-used ratio.
	RecordMemoryUsedRatio(ratio float64)
	// RecordEventLoopExceededMillis records the most recent event-loop delay
	// sample, in milliseconds over the configured threshold.
	RecordEventLoopExceededMillis(millis int64)
	// RecordCPUOverload records whether the most recent CPU sample was
	// overloaded.
	RecordCPUOverload(overloaded bool)
	// RecordSystemOverloaded records the outcome of an overload evaluation,
	// by dimension ("memory", "eventLoop", "cpu", "client").
	RecordSystemOverloaded(dimension string, overloaded bool)
}

// NewSnapshotMetrics creates a Prometheus-backed SnapshotMetrics, or nil if
// metrics are not enabled.
func NewSnapshotMetrics() SnapshotMetrics {
	if !IsEnabled() || newPrometheusSnapshotMetrics == nil {
		return nil
	}
	return newPrometheusSnapshotMetrics()
}

var newPrometheusSnapshotMetrics func() SnapshotMetrics

// RegisterSnapshotMetricsConstructor is called by pkg/metrics/prometheus
// during init to wire the Prometheus implementation without an import cycle.
func RegisterSnapshotMetricsConstructor(constructor func() SnapshotMetrics) {
	newPrometheusSnapshotMetrics = constructor
}
