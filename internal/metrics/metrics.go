// Package metrics is the backend-agnostic metrics facade used by the pipeline.
//
// Pipeline code calls the package-level helpers; cmd/etl installs a concrete
// backend (Datadog, Pushgateway) with SetBackend. Until then a no-op backend
// swallows everything, so tests and library callers need no setup.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions (Prometheus labels / Datadog tags).
type Labels map[string]string

// Backend receives metric updates. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names emitted by the pipeline.
const (
	StepTotal              = "etl_step_total"
	StepDurationSeconds    = "etl_step_duration_seconds"
	RecordsTotal           = "etl_records_total"
	BatchesTotal           = "etl_batches_total"
	ValidationFailureTotal = "etl_validation_failures_total"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. nil restores the no-op.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of the named histogram.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered metrics through the installed backend.
func Flush() error {
	return current().Flush()
}

// RecordStep reports one finished pipeline step with status ok or error.
func RecordStep(step string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, time.Since(started).Seconds(), l)
}

// AddRecords adds n to the record counter for kind (read, cleaned, dropped, ...).
func AddRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}
