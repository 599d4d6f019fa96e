// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the data pipeline.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//
// The primary use case is instrumentation of adapter fetches and chart
// resolutions without coupling the core pipeline to a specific metrics
// system.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordFetch measures one adapter fetch: latency, outcome, and row volume.
// source is the datasource variant tag ("file", "database", "api").
func RecordFetch(source string, err error, d time.Duration, rows int) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"source": source, "status": status}
	backend.IncCounter("datasource_fetch_total", 1, lbls)
	backend.ObserveHistogram("datasource_fetch_duration_seconds", d.Seconds(), lbls)
	if rows > 0 {
		backend.IncCounter("datasource_fetch_rows_total", float64(rows), Labels{"source": source})
	}
}

// RecordResolve measures one chart resolution.
func RecordResolve(chartType string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"chart_type": chartType, "status": status}
	backend.IncCounter("chart_resolve_total", 1, lbls)
	backend.ObserveHistogram("chart_resolve_duration_seconds", d.Seconds(), lbls)
}
