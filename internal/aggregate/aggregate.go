// Package aggregate groups table rows and reduces a measure column. Groups
// keep the order in which their keys first appear in the input, so chart
// output is stable across runs without an explicit sort.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"bivis/pkg/table"
)

// Func names a reduction over the measure column.
type Func string

const (
	Sum   Func = "sum"
	Avg   Func = "avg"
	Count Func = "count"
	Max   Func = "max"
	Min   Func = "min"
	None  Func = "none"
)

// Normalize maps the serialized aggregation name to a Func. Empty means Sum.
func Normalize(name string) (Func, error) {
	switch Func(name) {
	case "":
		return Sum, nil
	case Sum, Avg, Count, Max, Min, None:
		return Func(name), nil
	default:
		return "", fmt.Errorf("unknown aggregation function %q", name)
	}
}

// groupSep joins multi-column group keys. Unit separator, so natural text
// cannot collide with a composite key.
const groupSep = "\x1f"

// Aggregate groups t by the groupBy columns and reduces measure with fn. The
// result holds one row per distinct key combination, columns ordered as
// groupBy then measure, rows in first-appearance order.
//
// None returns the input projected to groupBy+measure without grouping. Count
// accepts any measure type and counts every row in the group, null measures
// included. The other reductions require a numeric measure and fail with
// ErrTypeMismatch otherwise; they skip null measures, so a group of only
// nulls reduces to nil.
func Aggregate(t *table.Table, groupBy []string, measure string, fn Func) (*table.Table, error) {
	outCols := append(append([]string{}, groupBy...), measure)

	if fn == None {
		return t.Select(outCols)
	}

	keyIx := make([]int, len(groupBy))
	for i, col := range groupBy {
		ix := t.ColumnIndex(col)
		if ix < 0 {
			return nil, fmt.Errorf("group column %q: %w", col, table.ErrUnknownField)
		}
		keyIx[i] = ix
	}
	mIx := t.ColumnIndex(measure)
	if mIx < 0 {
		return nil, fmt.Errorf("measure column %q: %w", measure, table.ErrUnknownField)
	}

	type group struct {
		labels []any
		rows   int // every row in the group, null measures included
		sum    float64
		count  int // non-null numeric measures seen
		min    float64
		max    float64
	}
	var order []string
	groups := make(map[string]*group)

	for row := 0; row < t.NumRows(); row++ {
		parts := make([]string, len(keyIx))
		labels := make([]any, len(keyIx))
		for i, ix := range keyIx {
			v := t.Cell(row, ix)
			labels[i] = v
			parts[i] = table.Formatted(v)
		}
		key := strings.Join(parts, groupSep)

		g, ok := groups[key]
		if !ok {
			g = &group{labels: labels}
			groups[key] = g
			order = append(order, key)
		}
		g.rows++
		v := t.Cell(row, mIx)
		if table.IsNull(v) {
			continue
		}
		f, numeric := table.Numeric(v)
		if !numeric {
			if fn != Count {
				return nil, fmt.Errorf("%s over non-numeric %q: %w", fn, measure, table.ErrTypeMismatch)
			}
			continue
		}
		g.count++
		if g.count == 1 {
			g.min, g.max = f, f
		} else {
			if f < g.min {
				g.min = f
			}
			if f > g.max {
				g.max = f
			}
		}
		g.sum += f
	}

	rows := make([][]any, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make([]any, 0, len(g.labels)+1)
		row = append(row, g.labels...)
		row = append(row, reduce(fn, g.rows, g.sum, g.count, g.min, g.max))
		rows = append(rows, row)
	}
	return table.New(outCols, rows)
}

func reduce(fn Func, rows int, sum float64, count int, min, max float64) any {
	switch fn {
	case Count:
		return float64(rows)
	case Sum:
		if count == 0 {
			return nil
		}
		return sum
	case Avg:
		if count == 0 {
			return nil
		}
		return sum / float64(count)
	case Min:
		if count == 0 {
			return nil
		}
		return min
	case Max:
		if count == 0 {
			return nil
		}
		return max
	default:
		return nil
	}
}

// SortByMeasure orders an aggregated table by its last column. Descending
// order with nulls last; ties keep their relative order.
func SortByMeasure(t *table.Table, descending bool) *table.Table {
	mIx := t.NumCols() - 1
	idx := make([]int, t.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, aok := table.Numeric(t.Cell(idx[a], mIx))
		vb, bok := table.Numeric(t.Cell(idx[b], mIx))
		if aok != bok {
			return aok
		}
		if !aok {
			return false
		}
		if descending {
			return va > vb
		}
		return va < vb
	})

	rows := make([][]any, len(idx))
	for i, ri := range idx {
		rows[i] = t.Row(ri)
	}
	out, _ := table.New(t.Columns(), rows)
	return out
}
