package datasource

import (
	"bivis/internal/config"
	"bivis/pkg/table"
)

// ApplyQuery applies the client-side parts of a query to a fetched table:
// ad-hoc conditions first, then column projection, then the row limit.
// Sources that can push parts of the query into their native protocol do so
// before calling this; the leftover parts are applied here so every variant
// honors the same query semantics.
func ApplyQuery(t *table.Table, q *config.Query) (*table.Table, error) {
	if q == nil {
		return t, nil
	}

	if len(q.Conditions) > 0 {
		for col, cond := range q.Conditions {
			ix := t.ColumnIndex(col)
			if ix < 0 {
				return nil, Fetchf(FetchInvalidShape, "condition column %q not in result", col)
			}
			c := cond
			t = t.FilterRows(func(row int) bool {
				return matchCondition(t.Cell(row, ix), c)
			})
		}
	}

	if len(q.Columns) > 0 {
		projected, err := t.Select(q.Columns)
		if err != nil {
			return nil, Fetchf(FetchInvalidShape, "project: %v", err)
		}
		t = projected
	}

	if q.Limit > 0 {
		t = t.Head(q.Limit)
	}
	return t, nil
}

// matchCondition mirrors the filter engine's semantics: bounds are inclusive,
// allowlists compare string forms, and null cells never match.
func matchCondition(v any, c config.Condition) bool {
	if table.IsNull(v) {
		return false
	}
	if c.Min != nil || c.Max != nil {
		f, ok := table.Numeric(v)
		if !ok {
			return false
		}
		if c.Min != nil && f < *c.Min {
			return false
		}
		if c.Max != nil && f > *c.Max {
			return false
		}
	}
	if len(c.Values) > 0 {
		s := table.Formatted(v)
		found := false
		for _, want := range c.Values {
			if s == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
