package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scrapeforge/crawlcore/pkg/metrics"
)

func init() {
	metrics.RegisterSessionMetricsConstructor(newSessionMetrics)
}

type sessionMetrics struct {
	poolSize        prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionsRetired *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
}

func newSessionMetrics() metrics.SessionMetrics {
	reg := metrics.GetRegistry()

	return &sessionMetrics{
		poolSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlcore_session_pool_size",
				Help: "Current number of sessions held by the pool",
			},
		),
		sessionsCreated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "crawlcore_session_created_total",
				Help: "Total number of sessions created",
			},
		),
		sessionsRetired: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcore_session_retired_total",
				Help: "Total number of sessions retired, by reason",
			},
			[]string{"reason"},
		),
		outcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcore_session_outcomes_total",
				Help: "Total number of MarkGood/MarkBad calls",
			},
			[]string{"outcome"}, // "good", "bad"
		),
	}
}

func (m *sessionMetrics) RecordPoolSize(n int) {
	if m == nil {
		return
	}
	m.poolSize.Set(float64(n))
}

func (m *sessionMetrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *sessionMetrics) RecordSessionRetired(reason string) {
	if m == nil {
		return
	}
	m.sessionsRetired.WithLabelValues(reason).Inc()
}

func (m *sessionMetrics) RecordSessionOutcome(good bool) {
	if m == nil {
		return
	}
	outcome := "bad"
	if good {
		outcome = "good"
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}
