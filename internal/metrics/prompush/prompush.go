// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the pipeline labels (source, chart_type, status) onto
//     Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint, which suits the short-lived CLI
//     process better than a scrape target would.
//
// All Prometheus-specific dependencies live here so the rest of the project
// depends only on metrics.Backend and can swap to alternative backends
// (e.g. Datadog, StatsD) without changes to the pipeline.
package prompush

import (
	"fmt"

	"bivis/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	// Fetch-level metrics, per datasource variant.
	fetchCounter  *prometheus.CounterVec // "datasource_fetch_total"
	fetchDuration *prometheus.SummaryVec // "datasource_fetch_duration_seconds"
	fetchRows     *prometheus.CounterVec // "datasource_fetch_rows_total"

	// Chart resolution metrics, per chart type.
	resolveCounter  *prometheus.CounterVec // "chart_resolve_total"
	resolveDuration *prometheus.SummaryVec // "chart_resolve_duration_seconds"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name grouping this process's metrics.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "bivis"
	}

	reg := prometheus.NewRegistry()

	fetchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasource_fetch_total",
			Help: "Total number of datasource fetches, partitioned by source variant and status.",
		},
		[]string{"source", "status"},
	)
	fetchDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "datasource_fetch_duration_seconds",
			Help:       "Duration of datasource fetches in seconds, partitioned by source variant and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"source", "status"},
	)
	fetchRows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasource_fetch_rows_total",
			Help: "Total rows returned by successful fetches, partitioned by source variant.",
		},
		[]string{"source"},
	)
	resolveCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_resolve_total",
			Help: "Total number of chart resolutions, partitioned by chart type and status.",
		},
		[]string{"chart_type", "status"},
	)
	resolveDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "chart_resolve_duration_seconds",
			Help:       "Duration of chart resolutions in seconds, partitioned by chart type and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"chart_type", "status"},
	)

	for _, c := range []prometheus.Collector{
		fetchCounter, fetchDuration, fetchRows, resolveCounter, resolveDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:      gatewayURL,
		jobName:         jobName,
		reg:             reg,
		fetchCounter:    fetchCounter,
		fetchDuration:   fetchDuration,
		fetchRows:       fetchRows,
		resolveCounter:  resolveCounter,
		resolveDuration: resolveDuration,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "datasource_fetch_total":
		if b.fetchCounter == nil {
			return
		}
		b.fetchCounter.WithLabelValues(labels["source"], labels["status"]).Add(delta)

	case "datasource_fetch_rows_total":
		if b.fetchRows == nil {
			return
		}
		b.fetchRows.WithLabelValues(labels["source"]).Add(delta)

	case "chart_resolve_total":
		if b.resolveCounter == nil {
			return
		}
		b.resolveCounter.WithLabelValues(labels["chart_type"], labels["status"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case "datasource_fetch_duration_seconds":
		if b.fetchDuration == nil {
			return
		}
		b.fetchDuration.WithLabelValues(labels["source"], labels["status"]).Observe(value)

	case "chart_resolve_duration_seconds":
		if b.resolveDuration == nil {
			return
		}
		b.resolveDuration.WithLabelValues(labels["chart_type"], labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
