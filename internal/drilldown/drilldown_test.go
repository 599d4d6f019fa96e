package drilldown

import (
	"errors"
	"testing"

	"bivis/internal/config"
	"bivis/pkg/table"
)

func fixture(t *testing.T) *table.Table {
	t.Helper()
	tab, err := table.New(
		[]string{"day", "region", "amount"},
		[][]any{
			{"2024-01-01", "east", "10"},
			{"2024-01-01", "west", "20"},
			{"2024-01-02", "east", "30"},
			{"2024-01-03", "west", "40"},
			{nil, "east", "50"},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func TestBarSelectionByX(t *testing.T) {
	got, err := Resolve(fixture(t), config.ChartConfig{Type: "bar", X: "day", Y: "amount"},
		Request{XValue: "2024-01-01"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", got.NumRows())
	}
	regions, _ := got.Column("region")
	if regions[0] != "east" || regions[1] != "west" {
		t.Fatalf("regions = %v", regions)
	}
}

func TestPieSelectionByLabel(t *testing.T) {
	got, err := Resolve(fixture(t), config.ChartConfig{Type: "pie", Group: "region", Y: "amount"},
		Request{LabelValue: "east"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3", got.NumRows())
	}
}

func TestPieFallsBackToX(t *testing.T) {
	got, err := Resolve(fixture(t), config.ChartConfig{Type: "pie", X: "region", Y: "amount"},
		Request{LabelValue: "west"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", got.NumRows())
	}
}

func TestNumericEquality(t *testing.T) {
	// "10.0" must match the stored "10" via numeric comparison.
	got, err := Resolve(fixture(t), config.ChartConfig{Type: "bar", X: "amount", Y: "amount"},
		Request{XValue: "10.0"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", got.NumRows())
	}
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	got, err := Resolve(fixture(t), config.ChartConfig{Type: "bar", X: "day", Y: "amount"},
		Request{XValue: "2030-12-31"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.NumRows() != 0 {
		t.Fatalf("rows = %d, want 0", got.NumRows())
	}
}

func TestNullCellsNeverMatch(t *testing.T) {
	got, err := Resolve(fixture(t), config.ChartConfig{Type: "bar", X: "day", Y: "amount"},
		Request{XValue: ""})
	if err == nil {
		t.Fatalf("empty x value accepted, rows = %d", got.NumRows())
	}
}

func TestRowCap(t *testing.T) {
	cols := []string{"k", "v"}
	rows := make([][]any, 0, 150)
	for i := 0; i < 150; i++ {
		rows = append(rows, []any{"same", "1"})
	}
	tab, err := table.New(cols, rows)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Resolve(tab, config.ChartConfig{Type: "bar", X: "k", Y: "v"},
		Request{XValue: "same"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.NumRows() != DefaultRowCap {
		t.Fatalf("rows = %d, want default cap %d", got.NumRows(), DefaultRowCap)
	}

	got, err = Resolve(tab, config.ChartConfig{Type: "bar", X: "k", Y: "v"},
		Request{XValue: "same", RowCap: 7})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.NumRows() != 7 {
		t.Fatalf("rows = %d, want 7", got.NumRows())
	}
}

func TestRoundTripAcrossXValues(t *testing.T) {
	raw := fixture(t)
	cfg := config.ChartConfig{Type: "bar", X: "day", Y: "amount"}

	total := 0
	for _, x := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		got, err := Resolve(raw, cfg, Request{XValue: x})
		if err != nil {
			t.Fatalf("Resolve(%s): %v", x, err)
		}
		total += got.NumRows()
	}
	// Every non-null-day row appears in exactly one drill-down result.
	if total != 4 {
		t.Fatalf("union rows = %d, want 4", total)
	}
}

func TestUnknownField(t *testing.T) {
	_, err := Resolve(fixture(t), config.ChartConfig{Type: "bar", X: "missing", Y: "amount"},
		Request{XValue: "x"})
	if !errors.Is(err, table.ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}
}
