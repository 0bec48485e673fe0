package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox relay outcomes.
const (
	OutboxPublished = "published"
	OutboxRetry     = "retry"
	OutboxTerminal  = "terminal"
)

// OutboxMetrics counts relayed outbox rows by outcome and times publishes.
// A nil *OutboxMetrics records nothing.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	publish prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sellerhub",
		Name:      "outbox_events_total",
		Help:      "Outbox rows handled by the relay, by outcome.",
	}, []string{"event_type", "outcome"})
	publish := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sellerhub",
		Name:      "outbox_publish_seconds",
		Help:      "Time from publish call to broker ack.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(events, publish)
	return &OutboxMetrics{events: events, publish: publish}
}

func (m *OutboxMetrics) Count(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *OutboxMetrics) ObservePublish(started time.Time) {
	if m == nil || m.publish == nil {
		return
	}
	m.publish.Observe(time.Since(started).Seconds())
}
