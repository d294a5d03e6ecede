// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway. Batch jobs end before a scraper could see them, so values are
// kept in a private registry and pushed on Flush.
package prompush

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Huy0211/DPA01-project/internal/metrics"
)

// Backend implements metrics.Backend on a prometheus.Registry.
type Backend struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	steps     *prometheus.CounterVec
	durations *prometheus.HistogramVec
	records   *prometheus.CounterVec
	batches   prometheus.Counter
	failures  *prometheus.CounterVec
}

// NewBackend builds a backend pushing to gatewayURL under the given job name.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	job = strings.TrimSpace(job)
	gatewayURL = strings.TrimSpace(gatewayURL)
	if job == "" {
		return nil, fmt.Errorf("prompush: job name is empty")
	}
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: pushgateway url is empty")
	}

	b := &Backend{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline steps finished, by step and status.",
		}, []string{"step", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Pipeline step wall time in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows seen by the pipeline, by kind.",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Batches processed by the transform step.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ValidationFailureTotal,
			Help: "Schema rule violations, by column and failure kind.",
		}, []string{"column", "kind"}),
	}
	b.registry.MustRegister(b.steps, b.durations, b.records, b.batches, b.failures)
	b.pusher = push.New(gatewayURL, job).Gatherer(b.registry)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		if labels["kind"] == "" {
			return
		}
		b.records.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batches.Add(delta)
	case metrics.ValidationFailureTotal:
		kind := labels["kind"]
		if kind == "" {
			kind = "unknown"
		}
		b.failures.WithLabelValues(labels["column"], kind).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.StepDurationSeconds {
		return
	}
	b.durations.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush replaces this job's metric group on the Pushgateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

// Registry exposes the underlying registry for inspection.
func (b *Backend) Registry() *prometheus.Registry { return b.registry }

var _ metrics.Backend = (*Backend)(nil)
