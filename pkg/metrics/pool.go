package metrics

// PoolMetrics provides observability for AutoscaledPool operations.
//
// Pass nil to disable metrics collection with zero overhead.
type PoolMetrics interface {
	// RecordDesiredConcurrency records the current target concurrency.
	RecordDesiredConcurrency(n int)
	// RecordRunningCount records the number of tasks currently in flight.
	RecordRunningCount(n int)
	// RecordScaleUp records a scale-up decision, with the new target.
	RecordScaleUp(newDesired int)
	// RecordScaleDown records a scale-down decision, with the new target.
	RecordScaleDown(newDesired int)
	// RecordTaskFailure records a RunTask failure.
	RecordTaskFailure()
}

// NewPoolMetrics creates a Prometheus-backed PoolMetrics, or nil if metrics
// are not enabled.
func NewPoolMetrics() PoolMetrics {
	if !IsEnabled() || newPrometheusPoolMetrics == nil {
		return nil
	}
	return newPrometheusPoolMetrics()
}

var newPrometheusPoolMetrics func() PoolMetrics

// RegisterPoolMetricsConstructor is called by pkg/metrics/prometheus during
// init to wire the Prometheus implementation without an import cycle.
func RegisterPoolMetricsConstructor(constructor func() PoolMetrics) {
	newPrometheusPoolMetrics = constructor
}
