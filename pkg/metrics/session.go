package metrics

// SessionMetrics provides observability for SessionPool operations.
//
// Pass nil to disable metrics collection with zero overhead.
type SessionMetrics interface {
	// RecordPoolSize records the current number of sessions held by the pool.
	RecordPoolSize(n int)
	// RecordSessionCreated records a freshly minted session.
	RecordSessionCreated()
	// RecordSessionRetired records a session being retired, with the reason
	// ("expired", "max_usage", "blocked", "explicit").
	RecordSessionRetired(reason string)
	// RecordSessionOutcome records MarkGood/MarkBad usage.
	RecordSessionOutcome(good bool)
}

// NewSessionMetrics creates a Prometheus-backed SessionMetrics, or nil if
// metrics are not enabled.
func NewSessionMetrics() SessionMetrics {
	if !IsEnabled() || newPrometheusSessionMetrics == nil {
		return nil
	}
	return newPrometheusSessionMetrics()
}

var newPrometheusSessionMetrics func() SessionMetrics

// RegisterSessionMetricsConstructor is called by pkg/metrics/prometheus
// during init to wire the Prometheus implementation without an import cycle.
func RegisterSessionMetricsConstructor(constructor func() SessionMetrics) {
	newPrometheusSessionMetrics = constructor
}
