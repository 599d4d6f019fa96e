// Package drilldown maps a selected chart mark back to the raw rows behind
// it. The resolver works on the pre-aggregation table a chart was built from,
// so the detail view shows source records, not aggregated ones.
package drilldown

import (
	"fmt"

	"bivis/internal/config"
	"bivis/pkg/table"
)

// DefaultRowCap bounds the detail result when the request does not set one.
const DefaultRowCap = 100

// Request describes one selected mark. X-axis marks carry XField/XValue; pie
// slices carry LabelField/LabelValue.
type Request struct {
	ChartID string `json:"chart_id"`

	XField string `json:"x_field,omitempty"`
	XValue string `json:"x_value,omitempty"`

	LabelField string `json:"label_field,omitempty"`
	LabelValue string `json:"label_value,omitempty"`

	// RowCap limits the returned rows. Zero means DefaultRowCap.
	RowCap int `json:"row_cap,omitempty"`
}

// Resolve returns the rows of raw matching the selection, capped to the
// request's row cap. The match field comes from the chart config: pie charts
// match on group (or x when group is empty) against the slice label, every
// other type matches on x against the x value. A selection that matches
// nothing returns an empty table, not an error.
func Resolve(raw *table.Table, cfg config.ChartConfig, req Request) (*table.Table, error) {
	field, value, err := selection(cfg, req)
	if err != nil {
		return nil, err
	}
	ix := raw.ColumnIndex(field)
	if ix < 0 {
		return nil, fmt.Errorf("drill-down field %q: %w", field, table.ErrUnknownField)
	}

	cap := req.RowCap
	if cap <= 0 {
		cap = DefaultRowCap
	}

	// Numeric selections compare by value so "10", "10.0", and 10 all hit
	// the same rows; everything else compares canonical string forms.
	want, wantNumeric := table.Numeric(value)

	matched := 0
	out := raw.FilterRows(func(row int) bool {
		if matched >= cap {
			return false
		}
		v := raw.Cell(row, ix)
		if table.IsNull(v) {
			return false
		}
		if wantNumeric {
			if f, ok := table.Numeric(v); ok {
				if f == want {
					matched++
					return true
				}
				return false
			}
		}
		if table.Formatted(v) == value {
			matched++
			return true
		}
		return false
	})
	return out, nil
}

// selection resolves the field/value pair to match on for the chart type.
func selection(cfg config.ChartConfig, req Request) (field, value string, err error) {
	if cfg.Type == "pie" {
		field = cfg.Group
		if field == "" {
			field = cfg.X
		}
		if req.LabelField != "" {
			field = req.LabelField
		}
		if req.LabelValue == "" {
			return "", "", fmt.Errorf("pie drill-down needs a label value")
		}
		return field, req.LabelValue, nil
	}

	field = cfg.X
	if req.XField != "" {
		field = req.XField
	}
	if field == "" {
		return "", "", fmt.Errorf("drill-down needs an x field")
	}
	if req.XValue == "" {
		return "", "", fmt.Errorf("drill-down needs an x value")
	}
	return field, req.XValue, nil
}
