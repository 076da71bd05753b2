package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	InvokerOutcomeGenerated = "generated"
	InvokerOutcomeLocked    = "locked"
	InvokerOutcomeSkipped   = "skipped"
	InvokerOutcomeFailed    = "failed"
)

// InvokerMetrics captures recurring invoker health for the run loop.
type InvokerMetrics struct {
	runs      *prometheus.CounterVec
	templates *prometheus.CounterVec
	duration  prometheus.Observer
	errors    *prometheus.CounterVec
}

var (
	invokerMetricsOnce sync.Once
	invokerMetrics     *InvokerMetrics
)

// Invoker returns the singleton invoker metrics registered on the default registry.
func Invoker(cfg Config) *InvokerMetrics {
	invokerMetricsOnce.Do(func() {
		invokerMetrics = newInvokerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return invokerMetrics
}

func newInvokerMetrics(registerer prometheus.Registerer, cfg Config) *InvokerMetrics {
	constLabels := constLabelsFor(cfg)

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "invoiceflow_recurring_invoker_runs_total",
		Help:        "Recurring invoker passes by job.",
		ConstLabels: constLabels,
	}, []string{"job"})
	templates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "invoiceflow_recurring_invoker_templates_total",
		Help:        "Due templates handled by the recurring invoker, by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "invoiceflow_recurring_invoker_duration_seconds",
		Help:        "Recurring invoker pass duration.",
		ConstLabels: constLabels,
		Buckets:     []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "invoiceflow_recurring_invoker_errors_total",
		Help:        "Recurring invoker errors by type.",
		ConstLabels: constLabels,
	}, []string{"error_type"})

	registerer.MustRegister(runs, templates, duration, errs)

	return &InvokerMetrics{
		runs:      runs,
		templates: templates,
		duration:  duration,
		errors:    errs,
	}
}

func (m *InvokerMetrics) IncRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *InvokerMetrics) AddTemplates(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.templates.WithLabelValues(outcome).Add(float64(count))
}

func (m *InvokerMetrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *InvokerMetrics) IncError(err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(ClassifyInvokerError(err)).Inc()
}

// ClassifyInvokerError buckets errors into a bounded label set.
func ClassifyInvokerError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}
