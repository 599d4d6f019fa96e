// Package schema classifies table columns into semantic types (text, numeric,
// date) by sampling cell values. The inferred Info drives filter evaluation
// (date columns carry their detected layout), aggregation validation, and the
// field pickers of the configuration UI.
//
// Inference is a pure function of the table: no hidden state, deterministic
// output, recomputed whenever the underlying table changes.
package schema

import (
	"fmt"
	"time"
)

// Type is the inferred semantic type of a column, independent of the raw
// storage representation.
type Type int

const (
	// TypeText is the fallback for anything that is not numeric or date.
	TypeText Type = iota
	// TypeNumeric covers integer and floating-point columns.
	TypeNumeric
	// TypeDate covers date and timestamp columns.
	TypeDate
)

// String returns the textual form used in CLI output and logs.
func (t Type) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeNumeric:
		return "numeric"
	case TypeDate:
		return "date"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Column describes one inferred column.
type Column struct {
	Name string
	Type Type

	// Layout is the time.Parse layout shared by the majority of values in a
	// date column. Empty for non-date columns.
	Layout string

	// Distinct is the cardinality of a text column's non-null values.
	// Zero for other types.
	Distinct int

	// Min and Max are the observed bounds of a numeric column. Nil when the
	// column has no non-null values or is not numeric.
	Min *float64
	Max *float64
}

// Info is the inferred schema of a table: one Column per table column, in
// table order, plus the row count. Info is derived and read-only.
type Info struct {
	Columns  []Column
	RowCount int

	byName map[string]int
}

// Column returns the inferred column with the given name.
func (i Info) Column(name string) (Column, bool) {
	ix, ok := i.byName[name]
	if !ok {
		return Column{}, false
	}
	return i.Columns[ix], true
}

// dateLayouts are the known date formats, tried in priority order: ISO 8601
// first, then locale-specific forms. A column is a date column only when a
// substantial majority of its non-null values parse under one single layout.
var dateLayouts = []string{
	"2006-01-02",  // ISO
	"2006/01/02",  // ISO slashy
	"02-01-2006",  // DMY dash
	"02.01.2006",  // DMY dot
	"02/01/2006",  // DMY slash
	"01/02/2006",  // MDY slash
	"20060102",    // basic ISO
	"2 Jan 2006",  // DMY textual month
	"02-Jan-2006", // DMY dash textual month
}

// timestampLayouts are the known formats with a time component. They are
// tried before date layouts so timestamps keep their clock part.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006/01/02 15:04:05",
	"02/01/2006 15:04:05",
}

// ParseDate parses s using layout first, then every known layout. It is the
// shared cell-to-time conversion for the filter and drill-down paths, so all
// consumers agree on what a date cell means.
func ParseDate(s, layout string) (time.Time, bool) {
	if layout != "" {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	for _, lay := range timestampLayouts {
		if ts, err := time.Parse(lay, s); err == nil {
			return ts, true
		}
	}
	for _, lay := range dateLayouts {
		if ts, err := time.Parse(lay, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
