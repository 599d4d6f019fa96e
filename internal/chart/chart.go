// Package chart resolves a chart configuration against a raw table into a
// RenderSpec. Resolution runs the declarative filters first, then the
// aggregation the chart asks for, then shapes the result for the chart type.
package chart

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"bivis/internal/aggregate"
	"bivis/internal/config"
	"bivis/internal/filter"
	"bivis/internal/metrics"
	"bivis/internal/schema"
	"bivis/pkg/table"
)

// ErrUnsupportedChartType reports a chart type the resolver does not know.
var ErrUnsupportedChartType = errors.New("unsupported chart type")

const defaultTableLimit = 100

var supportedTypes = map[string]bool{
	"line": true, "bar": true, "pie": true, "table": true,
	"combo": true, "scatter": true, "area": true, "histogram": true,
}

// Resolve turns cfg plus the raw table into a RenderSpec. info supplies the
// inferred column types for filter evaluation; now anchors quick-period
// filters. The input table is only read, never modified.
func Resolve(t *table.Table, cfg config.ChartConfig, info schema.Info, now time.Time) (spec *RenderSpec, err error) {
	start := time.Now()
	defer func() { metrics.RecordResolve(cfg.Type, err, time.Since(start)) }()

	if !supportedTypes[cfg.Type] {
		return nil, fmt.Errorf("%q: %w", cfg.Type, ErrUnsupportedChartType)
	}
	fn, err := aggregate.Normalize(cfg.AggFunc)
	if err != nil {
		return nil, err
	}

	filtered, err := filter.Apply(t, cfg.Filters, info, now)
	if err != nil {
		return nil, err
	}

	spec = &RenderSpec{
		ChartID:    cfg.ID,
		Type:       cfg.Type,
		Title:      cfg.Title,
		XLabel:     cfg.X,
		YLabel:     cfg.Y,
		ShowLabels: cfg.ShowLabels,
		ShowLegend: cfg.ShowLegend,
	}

	switch cfg.Type {
	case "table":
		err = resolveTable(spec, filtered, cfg)
	case "pie":
		err = resolvePie(spec, filtered, cfg, fn)
	case "combo":
		err = resolveCombo(spec, filtered, cfg, fn)
	case "histogram":
		err = resolveHistogram(spec, filtered, cfg)
	default:
		err = resolveXY(spec, filtered, cfg, fn)
	}
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// resolveXY handles line, bar, scatter, and area: aggregate by x (and group),
// then emit one series per group value.
func resolveXY(spec *RenderSpec, t *table.Table, cfg config.ChartConfig, fn aggregate.Func) error {
	palette := Palette(cfg.ColorTheme)

	if fn == aggregate.None {
		xs, ys, err := rawXY(t, cfg.X, cfg.Y)
		if err != nil {
			return err
		}
		spec.Series = []Series{{
			Name: cfg.Y, Kind: cfg.Type, X: xs, Y: ys,
			Color: colorFor(cfg.CustomColors, palette, cfg.Y, 0),
		}}
		return nil
	}

	groupBy := []string{cfg.X}
	if cfg.Group != "" {
		groupBy = append(groupBy, cfg.Group)
	}
	agg, err := aggregate.Aggregate(t, groupBy, cfg.Y, fn)
	if err != nil {
		return err
	}

	if cfg.Group == "" {
		if order := cfg.Options.String("sort", ""); order != "" {
			agg = aggregate.SortByMeasure(agg, order == "desc")
		}
		xs, ys, err := rawXY(agg, cfg.X, cfg.Y)
		if err != nil {
			return err
		}
		spec.Series = []Series{{
			Name: cfg.Y, Kind: cfg.Type, X: xs, Y: ys,
			Color: colorFor(cfg.CustomColors, palette, cfg.Y, 0),
		}}
		return nil
	}

	spec.Series = pivot(agg, cfg.Type, cfg.CustomColors, palette)
	return nil
}

// resolveCombo runs two aggregation passes over the same filtered table, one
// for y (bars, primary axis) and one for y2 (line, secondary axis), aligned
// on a shared x key order. Positions missing from one side follow the
// combo_nulls option: "gap" (default) carries nil, "zero" carries 0.
func resolveCombo(spec *RenderSpec, t *table.Table, cfg config.ChartConfig, fn aggregate.Func) error {
	aggY, err := aggregate.Aggregate(t, []string{cfg.X}, cfg.Y, fn)
	if err != nil {
		return err
	}
	aggY2, err := aggregate.Aggregate(t, []string{cfg.X}, cfg.Y2, fn)
	if err != nil {
		return err
	}

	var filler any
	if cfg.Options.String("combo_nulls", "gap") == "zero" {
		filler = 0.0
	}

	primary := keyedValues(aggY)
	secondary := keyedValues(aggY2)

	var xs []string
	seen := map[string]bool{}
	for _, k := range primary.order {
		xs = append(xs, k)
		seen[k] = true
	}
	for _, k := range secondary.order {
		if !seen[k] {
			xs = append(xs, k)
		}
	}

	palette := Palette(cfg.ColorTheme)
	spec.Series = []Series{
		{
			Name: cfg.Y, Kind: "bar", Axis: 0, X: xs,
			Y:     alignValues(primary.byKey, xs, filler),
			Color: colorFor(cfg.CustomColors, palette, cfg.Y, 0),
		},
		{
			Name: cfg.Y2, Kind: "line", Axis: 1, X: xs,
			Y:     alignValues(secondary.byKey, xs, filler),
			Color: colorFor(cfg.CustomColors, palette, cfg.Y2, 1),
		},
	}
	return nil
}

// resolvePie groups by the slice label field (group when set, else x) and
// reduces the measure. A missing y means slices count rows. Slices whose
// value is null or not positive are dropped.
func resolvePie(spec *RenderSpec, t *table.Table, cfg config.ChartConfig, fn aggregate.Func) error {
	label := cfg.Group
	if label == "" {
		label = cfg.X
	}
	measure := cfg.Y
	if measure == "" {
		measure = label
		fn = aggregate.Count
	}
	if fn == aggregate.None {
		fn = aggregate.Sum
	}

	agg, err := aggregate.Aggregate(t, []string{label}, measure, fn)
	if err != nil {
		return err
	}

	palette := Palette(cfg.ColorTheme)
	for row := 0; row < agg.NumRows(); row++ {
		v, ok := table.Numeric(agg.Cell(row, 1))
		if !ok || v <= 0 {
			continue
		}
		name := table.Formatted(agg.Cell(row, 0))
		spec.Slices = append(spec.Slices, Slice{
			Label: name,
			Value: v,
			Color: colorFor(cfg.CustomColors, palette, name, len(spec.Slices)),
		})
	}
	return nil
}

// resolveHistogram bins the numeric y values into equal-width buckets. The
// bucket count comes from options.bins (default 10).
func resolveHistogram(spec *RenderSpec, t *table.Table, cfg config.ChartConfig) error {
	ix := t.ColumnIndex(cfg.Y)
	if ix < 0 {
		return fmt.Errorf("histogram field %q: %w", cfg.Y, table.ErrUnknownField)
	}

	var values []float64
	for row := 0; row < t.NumRows(); row++ {
		if v, ok := table.Numeric(t.Cell(row, ix)); ok {
			values = append(values, v)
		}
	}

	bins := cfg.Options.Int("bins", 10)
	if bins < 1 {
		bins = 1
	}

	palette := Palette(cfg.ColorTheme)
	series := Series{
		Name:  cfg.Y,
		Kind:  "bar",
		Color: colorFor(cfg.CustomColors, palette, cfg.Y, 0),
	}
	if len(values) == 0 {
		spec.Series = []Series{series}
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		series.X = []string{strconv.FormatFloat(min, 'g', -1, 64)}
		series.Y = []any{float64(len(values))}
		spec.Series = []Series{series}
		return nil
	}

	width := (max - min) / float64(bins)
	counts := make([]float64, bins)
	for _, v := range values {
		i := int((v - min) / width)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}

	for i := 0; i < bins; i++ {
		lo := min + float64(i)*width
		hi := lo + width
		series.X = append(series.X, fmt.Sprintf("%.4g to %.4g", lo, hi))
		series.Y = append(series.Y, counts[i])
	}
	spec.Series = []Series{series}
	return nil
}

// resolveTable bypasses aggregation: it projects table_columns in order,
// caps the rows, and applies the requested orientation.
func resolveTable(spec *RenderSpec, t *table.Table, cfg config.ChartConfig) error {
	projected, err := t.Select(cfg.TableColumns)
	if err != nil {
		return err
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultTableLimit
	}
	projected = projected.Head(limit)

	orientation := cfg.TableOrientation
	if orientation == "" {
		orientation = "horizontal"
	}

	td := &TableData{Orientation: orientation}
	switch orientation {
	case "horizontal":
		td.Columns = projected.Columns()
		for row := 0; row < projected.NumRows(); row++ {
			td.Rows = append(td.Rows, projected.Row(row))
		}
	case "vertical":
		td.Columns = []string{"field"}
		for row := 0; row < projected.NumRows(); row++ {
			td.Columns = append(td.Columns, strconv.Itoa(row+1))
		}
		for _, name := range projected.Columns() {
			vals, err := projected.Column(name)
			if err != nil {
				return err
			}
			r := make([]any, 0, len(vals)+1)
			r = append(r, name)
			r = append(r, vals...)
			td.Rows = append(td.Rows, r)
		}
	default:
		return fmt.Errorf("unknown table orientation %q", orientation)
	}
	spec.Table = td
	return nil
}

// rawXY extracts aligned x/y sequences from a two-role table.
func rawXY(t *table.Table, x, y string) ([]string, []any, error) {
	xi := t.ColumnIndex(x)
	if xi < 0 {
		return nil, nil, fmt.Errorf("x field %q: %w", x, table.ErrUnknownField)
	}
	yi := t.ColumnIndex(y)
	if yi < 0 {
		return nil, nil, fmt.Errorf("y field %q: %w", y, table.ErrUnknownField)
	}

	xs := make([]string, t.NumRows())
	ys := make([]any, t.NumRows())
	for row := 0; row < t.NumRows(); row++ {
		xs[row] = table.Formatted(t.Cell(row, xi))
		ys[row] = t.Cell(row, yi)
	}
	return xs, ys, nil
}

// pivot reshapes an aggregated (x, group, measure) table into one series per
// group value. Every series shares the x key order of first appearance;
// combinations absent from the input carry nil.
func pivot(agg *table.Table, kind string, custom map[string]string, palette []string) []Series {
	var xKeys, gKeys []string
	xSeen, gSeen := map[string]bool{}, map[string]bool{}
	cells := map[string]any{}

	for row := 0; row < agg.NumRows(); row++ {
		x := table.Formatted(agg.Cell(row, 0))
		g := table.Formatted(agg.Cell(row, 1))
		if !xSeen[x] {
			xSeen[x] = true
			xKeys = append(xKeys, x)
		}
		if !gSeen[g] {
			gSeen[g] = true
			gKeys = append(gKeys, g)
		}
		cells[x+"\x1f"+g] = agg.Cell(row, 2)
	}

	series := make([]Series, 0, len(gKeys))
	for i, g := range gKeys {
		ys := make([]any, len(xKeys))
		for j, x := range xKeys {
			if v, ok := cells[x+"\x1f"+g]; ok {
				ys[j] = v
			}
		}
		series = append(series, Series{
			Name:  g,
			Kind:  kind,
			X:     xKeys,
			Y:     ys,
			Color: colorFor(custom, palette, g, i),
		})
	}
	return series
}

type keyed struct {
	order []string
	byKey map[string]any
}

// keyedValues indexes an aggregated (x, measure) table by the x key's string
// form, keeping first-appearance order.
func keyedValues(agg *table.Table) keyed {
	k := keyed{byKey: map[string]any{}}
	for row := 0; row < agg.NumRows(); row++ {
		key := table.Formatted(agg.Cell(row, 0))
		if _, ok := k.byKey[key]; !ok {
			k.order = append(k.order, key)
		}
		k.byKey[key] = agg.Cell(row, 1)
	}
	return k
}

func alignValues(byKey map[string]any, xs []string, filler any) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		if v, ok := byKey[x]; ok && v != nil {
			out[i] = v
		} else {
			out[i] = filler
		}
	}
	return out
}
