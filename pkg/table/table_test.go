package table

import (
	"errors"
	"testing"
	"time"
)

func fixture(t *testing.T) *Table {
	t.Helper()
	tab, err := New(
		[]string{"name", "score", "active"},
		[][]any{
			{"alice", "10", true},
			{"bob", "20", false},
			{"carol", nil, true},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func TestNewRejectsRaggedRows(t *testing.T) {
	_, err := New([]string{"a", "b"}, [][]any{{"1", "2"}, {"3"}})
	if err == nil {
		t.Fatal("ragged rows accepted")
	}
}

func TestAccessors(t *testing.T) {
	tab := fixture(t)
	if tab.NumRows() != 3 || tab.NumCols() != 3 {
		t.Fatalf("shape = %dx%d", tab.NumRows(), tab.NumCols())
	}
	if ix := tab.ColumnIndex("score"); ix != 1 {
		t.Fatalf("ColumnIndex(score) = %d", ix)
	}
	if tab.ColumnIndex("missing") != -1 || tab.HasColumn("missing") {
		t.Fatal("missing column reported present")
	}
	if v := tab.Cell(1, 0); v != "bob" {
		t.Fatalf("Cell(1,0) = %v", v)
	}

	col, err := tab.Column("score")
	if err != nil {
		t.Fatalf("Column: %v", err)
	}
	if col[0] != "10" || col[2] != nil {
		t.Fatalf("score column = %v", col)
	}
	if _, err := tab.Column("missing"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}
}

func TestColumnsAndRowReturnCopies(t *testing.T) {
	tab := fixture(t)
	cols := tab.Columns()
	cols[0] = "mutated"
	if tab.Columns()[0] != "name" {
		t.Fatal("Columns exposed internal state")
	}

	row := tab.Row(0)
	row[0] = "mutated"
	if tab.Cell(0, 0) != "alice" {
		t.Fatal("Row exposed internal state")
	}
}

func TestHead(t *testing.T) {
	tab := fixture(t)
	if got := tab.Head(2).NumRows(); got != 2 {
		t.Fatalf("Head(2) rows = %d", got)
	}
	if got := tab.Head(10).NumRows(); got != 3 {
		t.Fatalf("Head(10) rows = %d", got)
	}
	if got := tab.Head(-1).NumRows(); got != 0 {
		t.Fatalf("Head(-1) rows = %d", got)
	}
}

func TestSelect(t *testing.T) {
	tab := fixture(t)
	got, err := tab.Select([]string{"score", "name"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if cols := got.Columns(); cols[0] != "score" || cols[1] != "name" {
		t.Fatalf("columns = %v", cols)
	}
	if got.Cell(0, 1) != "alice" {
		t.Fatalf("cell = %v", got.Cell(0, 1))
	}
	if _, err := tab.Select([]string{"nope"}); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}
}

func TestFilterRows(t *testing.T) {
	tab := fixture(t)
	got := tab.FilterRows(func(row int) bool { return tab.Cell(row, 2) == true })
	if got.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", got.NumRows())
	}
	if got.Cell(1, 0) != "carol" {
		t.Fatalf("cell = %v", got.Cell(1, 0))
	}
	// The source table is untouched.
	if tab.NumRows() != 3 {
		t.Fatal("FilterRows mutated the receiver")
	}
}

func TestEqual(t *testing.T) {
	a := fixture(t)
	b := fixture(t)
	if !a.Equal(b) {
		t.Fatal("identical tables not equal")
	}
	c, _ := New([]string{"name", "score", "active"}, [][]any{{"alice", "10", true}})
	if a.Equal(c) {
		t.Fatal("different row counts equal")
	}
	if a.Equal(nil) {
		t.Fatal("nil table equal")
	}
	// Numeric cells compare by canonical form, not dynamic type.
	d, _ := New([]string{"v"}, [][]any{{"10"}})
	e, _ := New([]string{"v"}, [][]any{{float64(10)}})
	if !d.Equal(e) {
		t.Fatal("\"10\" and 10.0 must compare equal in formatted form")
	}
}

func TestIsNull(t *testing.T) {
	for _, v := range []any{nil, "", "   "} {
		if !IsNull(v) {
			t.Fatalf("IsNull(%#v) = false", v)
		}
	}
	for _, v := range []any{"x", 0, false, 0.0} {
		if IsNull(v) {
			t.Fatalf("IsNull(%#v) = true", v)
		}
	}
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{42, 42, true},
		{int64(7), 7, true},
		{3.5, 3.5, true},
		{"  2.25 ", 2.25, true},
		{"abc", 0, false},
		{true, 0, false},
		{nil, 0, false},
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0, false},
	}
	for _, tc := range tests {
		got, ok := Numeric(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("Numeric(%#v) = %v, %t; want %v, %t", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFormatted(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	stamp := time.Date(2024, 3, 5, 13, 45, 10, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{true, "true"},
		{12, "12"},
		{12.5, "12.5"},
		{float64(1000000), "1e+06"},
		{day, "2024-03-05"},
		{stamp, "2024-03-05 13:45:10"},
	}
	for _, tc := range tests {
		if got := Formatted(tc.in); got != tc.want {
			t.Fatalf("Formatted(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
