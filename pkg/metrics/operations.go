package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

const outcomeOK = "ok"

// OperationMetrics records latency and outcome of marketplace operations.
// A nil *OperationMetrics is valid and records nothing.
type OperationMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewOperationMetrics registers the operation metrics on the provided registerer.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	if reg == nil {
		return &OperationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sellerhub",
		Name:      "operation_duration_seconds",
		Help:      "Duration of marketplace operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sellerhub",
		Name:      "operation_outcomes_total",
		Help:      "Marketplace operation results by outcome code.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(duration, outcomes)
	return &OperationMetrics{
		duration: duration,
		outcomes: outcomes,
	}
}

// Observe records how long the operation took and which outcome it produced.
func (m *OperationMetrics) Observe(operation string, started time.Time, err error) {
	if m == nil || m.duration == nil || m.outcomes == nil {
		return
	}
	op := normalizeLabel(operation)
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	m.outcomes.WithLabelValues(op, Outcome(err)).Inc()
}

// Outcome maps an operation error to a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return strings.ToLower(string(pkgerrors.CodeInternal))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
