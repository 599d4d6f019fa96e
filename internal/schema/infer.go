package schema

import (
	"time"

	"bivis/pkg/table"
)

// dateMajority is the fraction of a column's non-null values that must parse
// under one single layout for the column to classify as date. The threshold
// is deliberately strict so that a stray date-looking value inside a text
// column cannot flip the whole column.
const dateMajority = 0.9

// Infer classifies every column of t. For each column it runs date-candidate
// detection first (a column whose values are compact numeric dates like
// "20240101" must not fall through to numeric), then the numeric check, then
// text. Empty columns default to text.
func Infer(t *table.Table) Info {
	cols := t.Columns()
	info := Info{
		Columns:  make([]Column, len(cols)),
		RowCount: t.NumRows(),
		byName:   make(map[string]int, len(cols)),
	}

	for ci, name := range cols {
		values := make([]any, 0, t.NumRows())
		for ri := 0; ri < t.NumRows(); ri++ {
			v := t.Cell(ri, ci)
			if table.IsNull(v) {
				continue
			}
			values = append(values, v)
		}
		info.Columns[ci] = inferColumn(name, values)
		info.byName[name] = ci
	}
	return info
}

// inferColumn classifies a single column from its non-null values.
func inferColumn(name string, values []any) Column {
	col := Column{Name: name, Type: TypeText}
	if len(values) == 0 {
		return col
	}

	if layout, ok := detectDate(values); ok {
		col.Type = TypeDate
		col.Layout = layout
		return col
	}

	if mn, mx, ok := detectNumeric(values); ok {
		col.Type = TypeNumeric
		col.Min = &mn
		col.Max = &mx
		return col
	}

	col.Distinct = distinctCount(values)
	return col
}

// detectDate reports whether a single known layout covers at least
// dateMajority of the values (and at least two values, so one lucky parse
// cannot decide). Cells already typed as time.Time count toward every layout.
func detectDate(values []any) (string, bool) {
	typed := 0
	var strs []string
	for _, v := range values {
		if _, ok := v.(time.Time); ok {
			typed++
			continue
		}
		if s, ok := v.(string); ok {
			strs = append(strs, s)
			continue
		}
		// Numeric or bool typed cells can never be dates.
		return "", false
	}

	need := int(float64(len(values))*dateMajority + 0.9999)
	if need < 2 {
		need = 2
	}
	if len(values) < 2 {
		return "", false
	}

	if typed == len(values) {
		return "2006-01-02", true
	}

	best, bestLayout := 0, ""
	for _, layout := range append(append([]string{}, timestampLayouts...), dateLayouts...) {
		n := typed
		for _, s := range strs {
			if _, err := time.Parse(layout, s); err == nil {
				n++
			}
		}
		if n > best {
			best, bestLayout = n, layout
		}
	}
	if best >= need {
		return bestLayout, true
	}
	return "", false
}

// detectNumeric requires every value to be numeric-typed or numeric-parsable
// and returns the observed bounds.
func detectNumeric(values []any) (mn, mx float64, ok bool) {
	for i, v := range values {
		f, isNum := table.Numeric(v)
		if !isNum {
			return 0, 0, false
		}
		if i == 0 {
			mn, mx = f, f
			continue
		}
		if f < mn {
			mn = f
		}
		if f > mx {
			mx = f
		}
	}
	return mn, mx, true
}

func distinctCount(values []any) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[table.Formatted(v)] = struct{}{}
	}
	return len(seen)
}
