// Package table defines the in-memory tabular representation shared by the
// data pipeline: adapters produce tables, the filter and aggregation engines
// transform them, and the chart and drill-down resolvers consume them.
//
// A Table is an ordered set of named columns with positionally aligned rows.
// Tables are immutable once constructed: every transform returns a new Table
// and never mutates an existing one. This matters because the same raw
// table is reused for both rendering and later drill-down, possibly from
// concurrent request handlers.
//
// Cell values are dynamically typed (any). Supported kinds are nil, string,
// bool, int64, float64, and time.Time; adapters normalize driver-specific
// values into these before building a Table.
package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Table is an immutable, column-ordered, row-aligned data set.
type Table struct {
	cols []string
	rows [][]any
}

// New builds a Table from an ordered column list and row-major cell data.
// Every row must have exactly len(cols) cells. The caller transfers ownership
// of both slices and must not mutate them afterwards.
func New(cols []string, rows [][]any) (*Table, error) {
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("table: row %d has %d cells, want %d", i, len(r), len(cols))
		}
	}
	return &Table{cols: cols, rows: rows}, nil
}

// Empty returns a zero-row table with the given columns.
func Empty(cols []string) *Table {
	return &Table{cols: cols}
}

// Columns returns a copy of the ordered column names.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.cols {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Cell returns the value at (row, col). It panics on out-of-range indexes,
// matching slice semantics; callers index within NumRows/NumCols.
func (t *Table) Cell(row, col int) any { return t.rows[row][col] }

// Row returns a copy of row i.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Column returns the values of the named column in row order.
func (t *Table) Column(name string) ([]any, error) {
	ix := t.ColumnIndex(name)
	if ix < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[ix]
	}
	return out, nil
}

// Head returns a table holding the first n rows (all rows when n exceeds the
// row count, zero rows when n <= 0). Row slices are shared with the receiver;
// immutability makes the sharing safe.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	return &Table{cols: t.cols, rows: t.rows[:n]}
}

// Select projects the named columns, in the requested order.
func (t *Table) Select(cols []string) (*Table, error) {
	ixs := make([]int, len(cols))
	for i, c := range cols {
		ix := t.ColumnIndex(c)
		if ix < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, c)
		}
		ixs[i] = ix
	}
	rows := make([][]any, len(t.rows))
	for i, r := range t.rows {
		nr := make([]any, len(ixs))
		for j, ix := range ixs {
			nr[j] = r[ix]
		}
		rows[i] = nr
	}
	return &Table{cols: append([]string(nil), cols...), rows: rows}, nil
}

// FilterRows returns a table containing the rows for which keep(i) is true,
// preserving order. Row slices are shared with the receiver.
func (t *Table) FilterRows(keep func(row int) bool) *Table {
	rows := make([][]any, 0, len(t.rows))
	for i, r := range t.rows {
		if keep(i) {
			rows = append(rows, r)
		}
	}
	return &Table{cols: t.cols, rows: rows}
}

// Equal reports element-wise equality of columns and formatted cell values.
func (t *Table) Equal(o *Table) bool {
	if o == nil || len(t.cols) != len(o.cols) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.cols {
		if t.cols[i] != o.cols[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if Formatted(t.rows[i][j]) != Formatted(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// IsNull reports whether a cell value counts as missing. Empty strings are
// null: file and API sources cannot distinguish "" from absent.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// Numeric converts a cell value to float64 when it is numeric-typed or a
// numeric-parsable string.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool, nil, time.Time:
		return 0, false
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Formatted returns the canonical string form of a cell value. Category
// matching, group-by keys, and drill-down equality all compare this form so
// that a numeric category column matches on its stringified representation.
func Formatted(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
