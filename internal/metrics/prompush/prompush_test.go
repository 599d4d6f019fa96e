package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bivis/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// readCounterValue reads the current value of a Counter for assertions in tests.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

// readSummaryCountSum reads sample count and sum from a SummaryVec for assertions in tests.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	if m.GetSummary() == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	sum := m.GetSummary()
	return sum.GetSampleCount(), sum.GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	if b, err := NewBackend("viz", ""); err == nil || b != nil {
		t.Fatalf("NewBackend with empty gateway URL = %v, %v; want nil, error", b, err)
	}

	b, err := NewBackend("", "http://pushgateway:9091")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	if b.jobName != "bivis" {
		t.Fatalf("default jobName = %q, want bivis", b.jobName)
	}

	b, err = NewBackend("my-dashboards", "http://pushgateway:9091")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	if b.jobName != "my-dashboards" || b.gatewayURL != "http://pushgateway:9091" {
		t.Fatalf("backend = %+v", b)
	}

	// Metric label cardinality: these calls should not panic.
	b.fetchCounter.WithLabelValues("file", "success").Add(1)
	b.fetchDuration.WithLabelValues("api", "failure").Observe(0.5)
	b.fetchRows.WithLabelValues("database").Add(10)
	b.resolveCounter.WithLabelValues("bar", "success").Add(1)
	b.resolveDuration.WithLabelValues("pie", "success").Observe(0.1)
}

// TestIncCounter verifies that IncCounter routes updates to the correct
// Prometheus collectors and ignores unknown metric names.
func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("viz", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter("datasource_fetch_total", 3, metrics.Labels{"source": "file", "status": "success"})
	b.IncCounter("datasource_fetch_rows_total", 120, metrics.Labels{"source": "file"})
	b.IncCounter("chart_resolve_total", 1, metrics.Labels{"chart_type": "combo", "status": "failure"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	if got := readCounterValue(t, b.fetchCounter.WithLabelValues("file", "success")); got != 3 {
		t.Fatalf("fetchCounter value = %v, want 3", got)
	}
	if got := readCounterValue(t, b.fetchRows.WithLabelValues("file")); got != 120 {
		t.Fatalf("fetchRows value = %v, want 120", got)
	}
	if got := readCounterValue(t, b.resolveCounter.WithLabelValues("combo", "failure")); got != 1 {
		t.Fatalf("resolveCounter value = %v, want 1", got)
	}
	// Label combinations that were never incremented stay zero.
	if got := readCounterValue(t, b.fetchCounter.WithLabelValues("api", "success")); got != 0 {
		t.Fatalf("fetchCounter value = %v, want 0 (unchanged)", got)
	}
}

// TestIncCounterNilMetrics ensures that IncCounter does not panic when the
// underlying collectors are missing.
func TestIncCounterNilMetrics(t *testing.T) {
	t.Parallel()

	b := &Backend{} // zero-value backend with nil collectors
	b.IncCounter("datasource_fetch_total", 1, metrics.Labels{"source": "file", "status": "success"})
	b.IncCounter("datasource_fetch_rows_total", 1, metrics.Labels{"source": "file"})
	b.IncCounter("chart_resolve_total", 1, metrics.Labels{"chart_type": "bar", "status": "success"})
	b.ObserveHistogram("datasource_fetch_duration_seconds", 1, metrics.Labels{})
	b.ObserveHistogram("chart_resolve_duration_seconds", 1, metrics.Labels{})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("viz", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.ObserveHistogram("datasource_fetch_duration_seconds", 1.5,
		metrics.Labels{"source": "database", "status": "success"})
	b.ObserveHistogram("chart_resolve_duration_seconds", 0.25,
		metrics.Labels{"chart_type": "line", "status": "success"})
	b.ObserveHistogram("other_metric", 2.0, metrics.Labels{"source": "database"})

	count, sum := readSummaryCountSum(t, b.fetchDuration, "database", "success")
	if count != 1 || sum != 1.5 {
		t.Fatalf("fetch summary = %d samples, sum %v; want 1, 1.5", count, sum)
	}
	count, sum = readSummaryCountSum(t, b.resolveDuration, "line", "success")
	if count != 1 || sum != 0.25 {
		t.Fatalf("resolve summary = %d samples, sum %v; want 1, 0.25", count, sum)
	}
}

// TestFlush verifies that Flush pushes the registry to the configured
// Pushgateway URL by sending an HTTP request to the gateway.
func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequestInfo struct {
		method  string
		path    string
		bodyLen int
	}

	reqCh := make(chan pushRequestInfo, 1)

	// Fake Pushgateway server that records the incoming request.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)

		reqCh <- pushRequestInfo{
			method:  r.Method,
			path:    r.URL.Path,
			bodyLen: len(body),
		}
		// Pushgateway typically returns 202 Accepted.
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("viz-job", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	// Add some data so the push body is non-empty.
	b.IncCounter("datasource_fetch_total", 1, metrics.Labels{"source": "api", "status": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushRequestInfo
	select {
	case got = <-reqCh:
		// OK
	default:
		t.Fatalf("Flush() did not result in any HTTP request to the Pushgateway")
	}

	if got.method == "" || got.path == "" {
		t.Fatalf("push request missing method or path: %+v", got)
	}
	if got.bodyLen == 0 {
		t.Fatalf("push request body length = 0, want > 0")
	}
}
