package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scrapeforge/crawlcore/pkg/metrics"
)

func init() {
	metrics.RegisterQueueMetricsConstructor(newQueueMetrics)
}

type queueMetrics struct {
	addOperations     *prometheus.CounterVec
	addDuration       prometheus.Histogram
	fetchOperations   *prometheus.CounterVec
	fetchDuration     prometheus.Histogram
	queueLength       *prometheus.GaugeVec
	inProgressCount   *prometheus.GaugeVec
	reclaimOperations *prometheus.CounterVec
}

func newQueueMetrics() metrics.QueueMetrics {
	reg := metrics.GetRegistry()

	return &queueMetrics{
		addOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcore_queue_add_requests_total",
				Help: "Total number of AddRequest calls by outcome",
			},
			[]string{"outcome"}, // "inserted", "duplicate"
		),
		addDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawlcore_queue_add_request_duration_seconds",
				Help:    "Duration of AddRequest calls",
				Buckets: prometheus.DefBuckets,
			},
		),
		fetchOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcore_queue_fetch_next_requests_total",
				Help: "Total number of FetchNextRequest calls by outcome",
			},
			[]string{"outcome"}, // "hit", "empty"
		),
		fetchDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawlcore_queue_fetch_next_request_duration_seconds",
				Help:    "Duration of FetchNextRequest calls",
				Buckets: prometheus.DefBuckets,
			},
		),
		queueLength: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawlcore_queue_length",
				Help: "Current number of unhandled requests per queue",
			},
			[]string{"queue_id"},
		),
		inProgressCount: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawlcore_queue_in_progress",
				Help: "Current number of in-progress requests per queue",
			},
			[]string{"queue_id"},
		),
		reclaimOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcore_queue_reclaims_total",
				Help: "Total number of requests reclaimed back onto a queue",
			},
			[]string{"queue_id"},
		),
	}
}

func (m *queueMetrics) ObserveAddRequest(duration time.Duration, wasAlreadyPresent bool) {
	if m == nil {
		return
	}
	outcome := "inserted"
	if wasAlreadyPresent {
		outcome = "duplicate"
	}
	m.addOperations.WithLabelValues(outcome).Inc()
	m.addDuration.Observe(duration.Seconds())
}

func (m *queueMetrics) ObserveFetchNextRequest(duration time.Duration, hit bool) {
	if m == nil {
		return
	}
	outcome := "empty"
	if hit {
		outcome = "hit"
	}
	m.fetchOperations.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(duration.Seconds())
}

func (m *queueMetrics) RecordQueueLength(queueID string, length int) {
	if m == nil {
		return
	}
	m.queueLength.WithLabelValues(queueID).Set(float64(length))
}

func (m *queueMetrics) RecordInProgressCount(queueID string, count int) {
	if m == nil {
		return
	}
	m.inProgressCount.WithLabelValues(queueID).Set(float64(count))
}

func (m *queueMetrics) RecordReclaim(queueID string) {
	if m == nil {
		return
	}
	m.reclaimOperations.WithLabelValues(queueID).Inc()
}
