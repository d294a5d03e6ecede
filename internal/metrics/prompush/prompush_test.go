package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Huy0211/DPA01-project/internal/metrics"
)

type capturedPush struct {
	mu     sync.Mutex
	method string
	path   string
	body   string
}

func newGateway(t *testing.T, status int) (*httptest.Server, *capturedPush) {
	t.Helper()
	c := &capturedPush{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.method, c.path, c.body = r.Method, r.URL.Path, string(raw)
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestNewBackend_RejectsEmptyInputs(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("", "http://localhost:9091"); err == nil {
		t.Fatalf("expected error for empty job")
	}
	if _, err := NewBackend("census_etl", "  "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestBackend_CountsByLabel(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("census_etl", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter(metrics.RecordsTotal, 5, metrics.Labels{"kind": "cleaned"})
	b.IncCounter(metrics.RecordsTotal, 2, metrics.Labels{"kind": "cleaned"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{})
	b.IncCounter(metrics.ValidationFailureTotal, 1, metrics.Labels{"column": "age", "kind": "out_of_range"})
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "load", "status": "ok"})
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.IncCounter("unknown_total", 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.2, metrics.Labels{"step": "load", "status": "ok"})

	if got := testutil.ToFloat64(b.records.WithLabelValues("cleaned")); got != 7 {
		t.Fatalf("records{cleaned}=%v, want 7", got)
	}
	if got := testutil.ToFloat64(b.failures.WithLabelValues("age", "out_of_range")); got != 1 {
		t.Fatalf("failures{age,out_of_range}=%v, want 1", got)
	}
	if got := testutil.ToFloat64(b.batches); got != 1 {
		t.Fatalf("batches=%v, want 1", got)
	}
	if got := testutil.CollectAndCount(b.durations); got != 1 {
		t.Fatalf("duration series=%d, want 1", got)
	}
}

func TestFlush_PushesJobGroup(t *testing.T) {
	t.Parallel()

	srv, c := newGateway(t, http.StatusOK)
	b, err := NewBackend("census_etl", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"kind": "loaded"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.method != http.MethodPut {
		t.Fatalf("method=%s, want PUT", c.method)
	}
	if c.path != "/metrics/job/census_etl" {
		t.Fatalf("path=%s", c.path)
	}
	if !strings.Contains(c.body, metrics.RecordsTotal) {
		t.Fatalf("pushed body does not mention %s", metrics.RecordsTotal)
	}
}

func TestFlush_ReportsGatewayErrors(t *testing.T) {
	t.Parallel()

	srv, _ := newGateway(t, http.StatusInternalServerError)
	b, err := NewBackend("census_etl", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.BatchesTotal, 1, nil)

	err = b.Flush()
	if err == nil || !strings.Contains(err.Error(), "prompush: push") {
		t.Fatalf("Flush err=%v, want wrapped push error", err)
	}
}
