// Package dashboard coordinates the pipeline for a set of charts sharing
// datasources: it owns the adapter manager and a per-chart snapshot of the
// raw fetched table, so a chart can be resolved and later drilled into
// without re-fetching the source.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"bivis/internal/chart"
	"bivis/internal/config"
	"bivis/internal/datasource"
	"bivis/internal/drilldown"
	"bivis/internal/schema"
	"bivis/internal/tablecache"
	"bivis/pkg/table"
)

// Service resolves charts against their datasources and answers drill-down
// selections from the raw tables those charts were built on. It is safe for
// concurrent use.
type Service struct {
	sources *datasource.Manager
	raw     *tablecache.Cache
}

// NewService returns a Service with no open adapters.
func NewService() *Service {
	return &Service{
		sources: datasource.NewManager(),
		raw:     tablecache.New(),
	}
}

// ResolveChart fetches the chart's datasource (served from the adapter's
// fetch cache when unchanged), snapshots the raw table under the chart id,
// and resolves the chart config into a render spec. now anchors quick-period
// filters.
func (s *Service) ResolveChart(ctx context.Context, src config.DataSourceConfig, cfg config.ChartConfig, q *config.Query, now time.Time) (*chart.RenderSpec, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("dashboard: chart config has no id")
	}
	ad, err := s.sources.Adapter(src)
	if err != nil {
		return nil, err
	}
	if err := ad.Connect(ctx); err != nil {
		return nil, err
	}
	tab, err := ad.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	info := schema.Infer(tab)
	spec, err := chart.Resolve(tab, cfg, info, now)
	if err != nil {
		return nil, err
	}
	// Snapshot only after a successful resolve so DrillDown never answers
	// for a chart that was never rendered.
	s.raw.Put(cfg.ID, tab)
	return spec, nil
}

// DrillDown maps a selection on a previously resolved chart back to the raw
// rows of the table that chart was rendered from.
func (s *Service) DrillDown(cfg config.ChartConfig, req drilldown.Request) (*table.Table, error) {
	tab, ok := s.raw.Get(cfg.ID)
	if !ok {
		return nil, fmt.Errorf("dashboard: chart %q has not been resolved", cfg.ID)
	}
	return drilldown.Resolve(tab, cfg, req)
}

// RefreshSource drops the adapter's fetch cache for the given datasource id,
// so the next ResolveChart re-queries the source. Chart snapshots stay until
// their chart is resolved again.
func (s *Service) RefreshSource(id string) {
	if ad, ok := s.sources.Get(id); ok {
		ad.Refresh()
	}
}

// Close releases all adapters and drops every chart snapshot.
func (s *Service) Close() {
	s.sources.ClearAll()
	s.raw.Clear()
}
