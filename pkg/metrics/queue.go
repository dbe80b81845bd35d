package metrics

import "time"

// QueueMetrics provides observability for RequestQueue operations.
//
// Pass nil to disable metrics collection with zero overhead.
type QueueMetrics interface {
	// ObserveAddRequest records a completed AddRequest call.
	ObserveAddRequest(duration time.Duration, wasAlreadyPresent bool)
	// ObserveFetchNextRequest records a completed FetchNextRequest call.
	ObserveFetchNextRequest(duration time.Duration, hit bool)
	// RecordQueueLength records the current unhandled request count.
	RecordQueueLength(queueID string, length int)
	// RecordInProgressCount records the current in-progress set size.
	RecordInProgressCount(queueID string, count int)
	// RecordReclaim records a request being returned to the queue.
	RecordReclaim(queueID string)
}

// NewQueueMetrics creates a Prometheus-backed QueueMetrics, or nil if
// metrics are not enabled.
func NewQueueMetrics() QueueMetrics {
	if !IsEnabled() || newPrometheusQueueMetrics == nil {
		return nil
	}
	return newPrometheusQueueMetrics()
}

var newPrometheusQueueMetrics func() QueueMetrics

// RegisterQueueMetricsConstructor is called by pkg/metrics/prometheus during
// init to wire the Prometheus implementation without an import cycle.
func RegisterQueueMetricsConstructor(constructor func() QueueMetrics) {
	newPrometheusQueueMetrics = constructor
}
