// Package filter evaluates declarative row filters against a table. The four
// predicate kinds (date range, quick period, value range, category) are
// composed with AND: a row survives only when every predicate accepts it.
//
// Each predicate is evaluated into a row bitmap and intersected, so the cost
// stays linear in rows regardless of how many predicates a chart declares.
package filter

import (
	"fmt"
	"time"

	"bivis/internal/bitmap"
	"bivis/internal/config"
	"bivis/internal/schema"
	"bivis/pkg/table"
)

// Apply evaluates spec against t and returns the surviving rows. info supplies
// the inferred column types; now anchors the quick-period windows. A nil or
// empty spec returns t unchanged.
//
// Null cells never satisfy a predicate, so filtering on a column excludes its
// null rows.
func Apply(t *table.Table, spec *config.FilterSpec, info schema.Info, now time.Time) (*table.Table, error) {
	if spec == nil || spec.Empty() {
		return t, nil
	}

	keep := bitmap.NewFull(t.NumRows())

	for _, f := range spec.DateRanges {
		bm, err := dateRangeRows(t, info, f)
		if err != nil {
			return nil, err
		}
		keep.And(bm)
	}
	for _, f := range spec.QuickPeriods {
		start, end, err := PeriodWindow(f.Period, now)
		if err != nil {
			return nil, err
		}
		bm, err := dateWindowRows(t, info, f.Column, start, end)
		if err != nil {
			return nil, err
		}
		keep.And(bm)
	}
	for _, f := range spec.ValueRanges {
		bm, err := valueRangeRows(t, f)
		if err != nil {
			return nil, err
		}
		keep.And(bm)
	}
	for _, f := range spec.Categories {
		bm, err := categoryRows(t, f)
		if err != nil {
			return nil, err
		}
		keep.And(bm)
	}

	return t.FilterRows(keep.Has), nil
}

// PeriodWindow translates a named quick period into a half-open [start, end)
// window anchored at now. Day boundaries are midnights in now's location.
func PeriodWindow(period string, now time.Time) (start, end time.Time, err error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case "today":
		return midnight, midnight.AddDate(0, 0, 1), nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), midnight, nil
	case "last_7_days":
		return midnight.AddDate(0, 0, -6), midnight.AddDate(0, 0, 1), nil
	case "last_30_days":
		return midnight.AddDate(0, 0, -29), midnight.AddDate(0, 0, 1), nil
	case "this_month":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return first, first.AddDate(0, 1, 0), nil
	case "last_month":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return first.AddDate(0, -1, 0), first, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown quick period %q", period)
	}
}

// dateRangeRows marks rows whose date cell falls inside [f.Start, f.End], both
// bounds inclusive and optional.
func dateRangeRows(t *table.Table, info schema.Info, f config.DateRangeFilter) (*bitmap.Bitmap, error) {
	var start, end time.Time
	if f.Start != "" {
		d, ok := schema.ParseDate(f.Start, "")
		if !ok {
			return nil, fmt.Errorf("date range on %q: bad start %q", f.Column, f.Start)
		}
		start = d
	}
	if f.End != "" {
		d, ok := schema.ParseDate(f.End, "")
		if !ok {
			return nil, fmt.Errorf("date range on %q: bad end %q", f.Column, f.End)
		}
		// The inclusive end date covers the whole day, including timestamp
		// values later that day.
		end = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location()).AddDate(0, 0, 1)
	}
	return dateWindowRows(t, info, f.Column, start, end)
}

// dateWindowRows marks rows whose cell parses as a date within [start, end).
// Zero bounds are open.
func dateWindowRows(t *table.Table, info schema.Info, column string, start, end time.Time) (*bitmap.Bitmap, error) {
	ix := t.ColumnIndex(column)
	if ix < 0 {
		return nil, fmt.Errorf("filter column %q: %w", column, table.ErrUnknownField)
	}
	col, ok := info.Column(column)
	if !ok {
		return nil, fmt.Errorf("filter column %q not in schema: %w", column, table.ErrUnknownField)
	}
	if col.Type != schema.TypeDate {
		return nil, fmt.Errorf("date filter on %s column %q: %w", col.Type, column, table.ErrTypeMismatch)
	}

	bm := bitmap.New(t.NumRows())
	for row := 0; row < t.NumRows(); row++ {
		d, ok := cellDate(t.Cell(row, ix), col.Layout)
		if !ok {
			continue
		}
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && !d.Before(end) {
			continue
		}
		bm.Add(row)
	}
	return bm, nil
}

// valueRangeRows marks rows whose numeric cell lies inside the inclusive
// [min, max] interval. Non-numeric cells never match.
func valueRangeRows(t *table.Table, f config.ValueRangeFilter) (*bitmap.Bitmap, error) {
	ix := t.ColumnIndex(f.Column)
	if ix < 0 {
		return nil, fmt.Errorf("filter column %q: %w", f.Column, table.ErrUnknownField)
	}

	bm := bitmap.New(t.NumRows())
	for row := 0; row < t.NumRows(); row++ {
		v, ok := table.Numeric(t.Cell(row, ix))
		if !ok {
			continue
		}
		if f.Min != nil && v < *f.Min {
			continue
		}
		if f.Max != nil && v > *f.Max {
			continue
		}
		bm.Add(row)
	}
	return bm, nil
}

// categoryRows marks rows whose cell is in the allowlist (when present) and
// not in the blocklist. Values compare by their canonical string form.
func categoryRows(t *table.Table, f config.CategoryFilter) (*bitmap.Bitmap, error) {
	ix := t.ColumnIndex(f.Column)
	if ix < 0 {
		return nil, fmt.Errorf("filter column %q: %w", f.Column, table.ErrUnknownField)
	}

	var included, excluded map[string]bool
	if len(f.Included) > 0 {
		included = make(map[string]bool, len(f.Included))
		for _, v := range f.Included {
			included[v] = true
		}
	}
	if len(f.Excluded) > 0 {
		excluded = make(map[string]bool, len(f.Excluded))
		for _, v := range f.Excluded {
			excluded[v] = true
		}
	}

	bm := bitmap.New(t.NumRows())
	for row := 0; row < t.NumRows(); row++ {
		v := t.Cell(row, ix)
		if table.IsNull(v) {
			continue
		}
		s := table.Formatted(v)
		if included != nil && !included[s] {
			continue
		}
		if excluded != nil && excluded[s] {
			continue
		}
		bm.Add(row)
	}
	return bm, nil
}

// cellDate resolves a cell to a date: typed times pass through, strings go
// through the column's detected layout first.
func cellDate(v any, layout string) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		return schema.ParseDate(d, layout)
	default:
		return time.Time{}, false
	}
}
