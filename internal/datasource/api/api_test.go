package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"bivis/internal/config"
	"bivis/internal/datasource"
	"bivis/internal/schema"
)

func apiAdapter(t *testing.T, ac config.APIConfig) *Adapter {
	t.Helper()
	return New(config.DataSourceConfig{
		ID:   "api1",
		Name: "test",
		Type: config.SourceAPI,
		API:  &ac,
	})
}

func TestFetchFlatArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"city":"oslo","pop":700000},{"city":"bergen","pop":290000}]`))
	}))
	defer srv.Close()

	a := apiAdapter(t, config.APIConfig{URL: srv.URL})
	tab, err := a.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := tab.NumRows(); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	// Columns are the sorted union of record keys.
	if got := tab.Columns(); got[0] != "city" || got[1] != "pop" {
		t.Fatalf("columns = %v", got)
	}
	if got := tab.Cell(0, 0); got != "oslo" {
		t.Fatalf("cell = %v, want oslo", got)
	}
	if got := tab.Cell(1, 1); got != 290000.0 {
		t.Fatalf("cell = %v, want 290000", got)
	}
}

func TestFetchResultPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{"count":1},"data":{"items":[{"a":1}]}}`))
	}))
	defer srv.Close()

	a := apiAdapter(t, config.APIConfig{URL: srv.URL, ResultPath: "data.items"})
	tab, err := a.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := tab.NumRows(); got != 1 {
		t.Fatalf("rows = %d, want 1", got)
	}
}

func TestFetchResultPathMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	a := apiAdapter(t, config.APIConfig{URL: srv.URL, ResultPath: "data.items"})
	_, err := a.Fetch(context.Background(), nil)
	kind, ok := datasource.FetchKindOf(err)
	if !ok || kind != datasource.FetchInvalidShape {
		t.Fatalf("err = %v, want FetchInvalidShape", err)
	}
}

func TestFetchRaggedRecordsAndNesting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"a":1,"nested":{"x":1}},{"b":"two"}]`))
	}))
	defer srv.Close()

	a := apiAdapter(t, config.APIConfig{URL: srv.URL})
	tab, err := a.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := tab.NumCols(); got != 3 {
		t.Fatalf("cols = %d, want 3 (union of keys)", got)
	}
	if v := tab.Cell(1, 0); v != nil {
		t.Fatalf("missing key = %v, want nil", v)
	}
	if v := tab.Cell(0, 2); v != `{"x":1}` {
		t.Fatalf("nested value = %v, want JSON text", v)
	}
}

func TestFetchHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := apiAdapter(t, config.APIConfig{URL: srv.URL + "/missing"})
	_, err := a.Fetch(context.Background(), nil)
	if kind, ok := datasource.FetchKindOf(err); !ok || kind != datasource.FetchNotFound {
		t.Fatalf("err = %v, want FetchNotFound", err)
	}

	a = apiAdapter(t, config.APIConfig{URL: srv.URL + "/err"})
	_, err = a.Fetch(context.Background(), nil)
	if kind, ok := datasource.FetchKindOf(err); !ok || kind != datasource.FetchQuery {
		t.Fatalf("err = %v, want FetchQuery", err)
	}
}

func TestFetchNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := apiAdapter(t, config.APIConfig{URL: srv.URL})
	if _, err := a.Fetch(context.Background(), nil); err == nil {
		t.Fatal("Fetch on 503 succeeded")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("endpoint called %d times, want exactly 1", got)
	}
}

func TestFetchErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"a":1}]`))
	}))
	defer srv.Close()

	a := apiAdapter(t, config.APIConfig{URL: srv.URL})
	if _, err := a.Fetch(context.Background(), nil); err == nil {
		t.Fatal("first Fetch succeeded, want error")
	}
	tab, err := a.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if got := tab.NumRows(); got != 1 {
		t.Fatalf("rows = %d, want 1", got)
	}
}

func TestAuthAndParams(t *testing.T) {
	var gotAuth, gotParam string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotParam = r.URL.Query().Get("page")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	a := apiAdapter(t, config.APIConfig{
		URL:    srv.URL,
		Params: map[string]string{"page": "2"},
		Auth:   &config.APIAuth{APIKey: "tok123"},
	})
	if _, err := a.Fetch(context.Background(), nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotParam != "2" {
		t.Fatalf("page param = %q, want 2", gotParam)
	}
}

func TestConnectProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("probe used %s, want HEAD", r.Method)
		}
	}))
	a := apiAdapter(t, config.APIConfig{URL: srv.URL})
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	srv.Close()
	var cerr *datasource.ConnectionError
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("Connect to closed server succeeded")
	} else if !errors.As(err, &cerr) {
		t.Fatalf("err = %T, want *ConnectionError", err)
	}
}

func TestSchemaAfterFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"day":"2024-01-01","n":1},{"day":"2024-01-02","n":2}]`))
	}))
	defer srv.Close()

	a := apiAdapter(t, config.APIConfig{URL: srv.URL})
	if _, err := a.Fetch(context.Background(), nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	info, err := a.Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	day, ok := info.Column("day")
	if !ok || day.Type != schema.TypeDate {
		t.Fatalf("day type = %v, want date", day.Type)
	}
	n, ok := info.Column("n")
	if !ok || n.Type != schema.TypeNumeric {
		t.Fatalf("n type = %v, want numeric", n.Type)
	}
}
