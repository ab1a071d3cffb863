package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Publisher outcomes for a single outbox row.
const (
	OutboxPublished    = "published"
	OutboxDeduplicated = "deduplicated"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks what the publisher did with each claimed row.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	batch   prometheus.Histogram
	publish *prometheus.HistogramVec
}

// NewOutboxMetrics registers the publisher collectors on reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vehiclesync_outbox_events_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vehiclesync_outbox_batch_rows",
		Help:    "Rows claimed per publisher poll.",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
	publish := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vehiclesync_outbox_publish_seconds",
		Help:    "Broker acknowledgement latency per topic.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
	reg.MustRegister(events, batch, publish)
	return &OutboxMetrics{events: events, batch: batch, publish: publish}
}

// ObserveEvent counts one row outcome.
func (m *OutboxMetrics) ObserveEvent(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveBatch records how many rows one poll claimed.
func (m *OutboxMetrics) ObserveBatch(rows int) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.Observe(float64(rows))
}

// ObservePublish records the broker round trip for topic.
func (m *OutboxMetrics) ObservePublish(topic string, elapsed time.Duration) {
	if m == nil || m.publish == nil {
		return
	}
	m.publish.WithLabelValues(normalizeLabel(topic)).Observe(elapsed.Seconds())
}
