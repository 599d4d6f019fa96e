package datasource

import (
	"errors"
	"fmt"
	"testing"

	"bivis/internal/config"
	"bivis/pkg/table"
)

func ordersTable(t *testing.T) *table.Table {
	t.Helper()
	tab, err := table.New(
		[]string{"region", "amount", "day"},
		[][]any{
			{"west", 10.0, "2024-03-01"},
			{"east", 20.0, "2024-03-02"},
			{"west", nil, "2024-03-03"},
			{"east", 40.0, "2024-03-04"},
			{"north", 50.0, "2024-03-05"},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func f64(v float64) *float64 { return &v }

func TestApplyQueryNil(t *testing.T) {
	tab := ordersTable(t)
	got, err := ApplyQuery(tab, nil)
	if err != nil || got != tab {
		t.Fatalf("nil query must pass the table through, got %v, %v", got, err)
	}
}

func TestApplyQueryConditions(t *testing.T) {
	tests := []struct {
		name string
		cond config.Condition
		want int
	}{
		{"min inclusive", config.Condition{Min: f64(20)}, 3},
		{"max inclusive", config.Condition{Max: f64(20)}, 2},
		{"min and max", config.Condition{Min: f64(20), Max: f64(40)}, 2},
		{"values allowlist", config.Condition{Values: []string{"20", "50"}}, 2},
		{"range and values", config.Condition{Min: f64(15), Values: []string{"20", "10"}}, 1},
		{"nothing matches", config.Condition{Min: f64(1000)}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &config.Query{Conditions: map[string]config.Condition{"amount": tc.cond}}
			got, err := ApplyQuery(ordersTable(t), q)
			if err != nil {
				t.Fatalf("ApplyQuery: %v", err)
			}
			if got.NumRows() != tc.want {
				t.Fatalf("rows = %d, want %d", got.NumRows(), tc.want)
			}
		})
	}
}

func TestApplyQueryNullsNeverMatch(t *testing.T) {
	// The row with a null amount is excluded even by an open-ended range.
	q := &config.Query{Conditions: map[string]config.Condition{"amount": {Min: f64(0)}}}
	got, err := ApplyQuery(ordersTable(t), q)
	if err != nil {
		t.Fatal(err)
	}
	if got.NumRows() != 4 {
		t.Fatalf("rows = %d, want 4 (null excluded)", got.NumRows())
	}
}

func TestApplyQueryProjectionAndLimit(t *testing.T) {
	q := &config.Query{Columns: []string{"day", "region"}, Limit: 2}
	got, err := ApplyQuery(ordersTable(t), q)
	if err != nil {
		t.Fatalf("ApplyQuery: %v", err)
	}
	if cols := got.Columns(); len(cols) != 2 || cols[0] != "day" || cols[1] != "region" {
		t.Fatalf("columns = %v", cols)
	}
	if got.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", got.NumRows())
	}
}

func TestApplyQueryConditionsBeforeLimit(t *testing.T) {
	q := &config.Query{
		Conditions: map[string]config.Condition{"region": {Values: []string{"east"}}},
		Limit:      1,
	}
	got, err := ApplyQuery(ordersTable(t), q)
	if err != nil {
		t.Fatal(err)
	}
	if got.NumRows() != 1 || got.Cell(0, 0) != "east" {
		t.Fatalf("got %d rows, first region %v", got.NumRows(), got.Cell(0, 0))
	}
}

func TestApplyQueryUnknownColumns(t *testing.T) {
	q := &config.Query{Conditions: map[string]config.Condition{"missing": {Min: f64(1)}}}
	_, err := ApplyQuery(ordersTable(t), q)
	if kind, ok := FetchKindOf(err); !ok || kind != FetchInvalidShape {
		t.Fatalf("condition on unknown column: err = %v", err)
	}

	q = &config.Query{Columns: []string{"missing"}}
	_, err = ApplyQuery(ordersTable(t), q)
	if kind, ok := FetchKindOf(err); !ok || kind != FetchInvalidShape {
		t.Fatalf("projection of unknown column: err = %v", err)
	}
}

func TestFetchErrorKinds(t *testing.T) {
	err := Fetchf(FetchTimeout, "source answered after %ds", 30)
	if kind, ok := FetchKindOf(err); !ok || kind != FetchTimeout {
		t.Fatalf("FetchKindOf = %v, %t", kind, ok)
	}

	wrapped := fmt.Errorf("loading orders: %w", err)
	if kind, ok := FetchKindOf(wrapped); !ok || kind != FetchTimeout {
		t.Fatal("FetchKindOf must see through wrapping")
	}

	if _, ok := FetchKindOf(errors.New("plain")); ok {
		t.Fatal("plain error reported a fetch kind")
	}

	var fe *FetchError
	if !errors.As(wrapped, &fe) || fe.Kind != FetchTimeout {
		t.Fatal("errors.As did not find the FetchError")
	}
}

func TestConnectionErrorUnwrap(t *testing.T) {
	cause := errors.New("refused")
	err := &ConnectionError{Reason: "probe db.local:5432", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("ConnectionError does not unwrap its cause")
	}
	if err.Error() != "connect: probe db.local:5432: refused" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
