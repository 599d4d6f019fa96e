// Package api implements the HTTP/JSON datasource adapter. It fetches a JSON
// document, walks an optional result path to the record array, and flattens
// the records into the internal table representation.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"bivis/internal/config"
	"bivis/internal/datasource"
	"bivis/internal/metrics"
	"bivis/internal/schema"
	"bivis/pkg/table"
)

func init() {
	datasource.Register(config.SourceAPI, func(cfg config.DataSourceConfig) (datasource.Adapter, error) {
		return New(cfg), nil
	})
}

// Adapter fetches tabular data from one configured JSON endpoint. It caches
// the most recent fetch and is safe for concurrent use.
type Adapter struct {
	cfg    config.APIConfig
	name   string
	client *client
	cache  datasource.FetchCache
}

// New returns an adapter bound to the api section of cfg.
func New(cfg config.DataSourceConfig) *Adapter {
	c := *cfg.API
	timeout := 30 * time.Second
	if c.TimeoutSec > 0 {
		timeout = time.Duration(c.TimeoutSec) * time.Second
	}

	base := http.Header{}
	for k, v := range c.Headers {
		base.Set(k, v)
	}
	if c.Auth != nil {
		switch {
		case c.Auth.APIKey != "":
			base.Set("Authorization", "Bearer "+c.Auth.APIKey)
		case c.Auth.Username != "":
			base.Set("Authorization", "Basic "+basicAuth(c.Auth.Username, c.Auth.Password))
		}
	}

	return &Adapter{
		cfg:  c,
		name: cfg.Name,
		client: newClient(clientConfig{
			Timeout:            timeout,
			InsecureSkipVerify: c.InsecureSkipVerify,
			BaseHeaders:        base,
		}),
	}
}

// Connect probes the endpoint with a HEAD request. Any HTTP answer counts as
// reachable; only transport failures are connection errors.
func (a *Adapter) Connect(ctx context.Context) error {
	resp, err := a.client.do(ctx, http.MethodHead, a.requestURL(), nil, nil)
	if err != nil {
		return &datasource.ConnectionError{Reason: "probe " + a.cfg.URL, Err: err}
	}
	_ = resp.Body.Close()
	return nil
}

// Fetch issues the configured request, decodes the JSON response, and applies
// the query client-side. Identical repeated queries return the cached table.
func (a *Adapter) Fetch(ctx context.Context, q *config.Query) (*table.Table, error) {
	key := datasource.Key("api", a.cfg.URL, a.cfg.Method, fmt.Sprint(a.cfg.Params), a.cfg.ResultPath, q.Signature())
	return a.cache.Do(key, func() (*table.Table, error) {
		start := time.Now()
		t, err := a.request(ctx)
		if err == nil {
			t, err = datasource.ApplyQuery(t, q)
		}
		rows := 0
		if t != nil {
			rows = t.NumRows()
		}
		metrics.RecordFetch("api", err, time.Since(start), rows)
		return t, err
	})
}

func (a *Adapter) request(ctx context.Context) (*table.Table, error) {
	method := strings.ToUpper(a.cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	var hdr http.Header
	if len(a.cfg.Body) > 0 && method != http.MethodGet {
		b, err := json.Marshal(a.cfg.Body)
		if err != nil {
			return nil, datasource.Fetchf(datasource.FetchMalformed, "encode body: %v", err)
		}
		body = b
		hdr = http.Header{"Content-Type": {"application/json"}}
	}

	resp, err := a.client.do(ctx, method, a.requestURL(), body, hdr)
	if err != nil {
		return nil, &datasource.FetchError{Kind: datasource.FetchQuery, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		kind := datasource.FetchQuery
		if resp.StatusCode == http.StatusNotFound {
			kind = datasource.FetchNotFound
		}
		return nil, datasource.Fetchf(kind, "%s %s: %s", method, a.cfg.URL, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &datasource.FetchError{Kind: datasource.FetchQuery, Err: err}
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, datasource.Fetchf(datasource.FetchMalformed, "decode response: %v", err)
	}

	recs, err := recordsAt(doc, a.cfg.ResultPath)
	if err != nil {
		return nil, err
	}
	return tabulate(recs)
}

// requestURL appends the configured params to the endpoint URL.
func (a *Adapter) requestURL() string {
	if len(a.cfg.Params) == 0 {
		return a.cfg.URL
	}
	u, err := url.Parse(a.cfg.URL)
	if err != nil {
		return a.cfg.URL
	}
	vals := u.Query()
	for k, v := range a.cfg.Params {
		vals.Set(k, v)
	}
	u.RawQuery = vals.Encode()
	return u.String()
}

// Schema infers the semantic schema of the last-fetched table.
func (a *Adapter) Schema() (schema.Info, error) {
	t, ok := a.cache.Last()
	if !ok {
		return schema.Info{}, datasource.ErrNotConnected
	}
	return schema.Infer(t), nil
}

// Preview returns the first n rows of the cached table.
func (a *Adapter) Preview(n int) (*table.Table, error) {
	t, ok := a.cache.Last()
	if !ok {
		return nil, datasource.ErrNotConnected
	}
	return t.Head(n), nil
}

// Refresh drops the cached table. The next fetch hits the endpoint again.
func (a *Adapter) Refresh() { a.cache.Invalidate() }

// Close is a no-op; the underlying transport pools its own connections.
func (a *Adapter) Close() error {
	a.client.httpClient.CloseIdleConnections()
	return nil
}

// recordsAt walks a dot-separated key path into the decoded document and
// returns the record list found there. A single object is treated as a
// one-record list.
func recordsAt(doc any, path string) ([]map[string]any, error) {
	cur := doc
	if path != "" {
		for _, seg := range strings.Split(path, ".") {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, datasource.Fetchf(datasource.FetchInvalidShape,
					"result path %q: segment %q applied to non-object", path, seg)
			}
			cur, ok = obj[seg]
			if !ok {
				return nil, datasource.Fetchf(datasource.FetchInvalidShape,
					"result path %q: key %q not found", path, seg)
			}
		}
	}

	switch v := cur.(type) {
	case []any:
		recs := make([]map[string]any, 0, len(v))
		for i, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, datasource.Fetchf(datasource.FetchInvalidShape,
					"record %d is %T, want object", i, item)
			}
			recs = append(recs, rec)
		}
		return recs, nil
	case map[string]any:
		return []map[string]any{v}, nil
	default:
		return nil, datasource.Fetchf(datasource.FetchInvalidShape,
			"result is %T, want array of objects", cur)
	}
}

// tabulate flattens the records into a table. Columns are the sorted union of
// keys across all records; missing keys become nulls, nested values are kept
// as their JSON text.
func tabulate(recs []map[string]any) (*table.Table, error) {
	seen := map[string]bool{}
	for _, rec := range recs {
		for k := range rec {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	if len(cols) == 0 {
		return table.Empty(nil), nil
	}

	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		row := make([]any, len(cols))
		for i, c := range cols {
			v, ok := rec[c]
			if !ok || v == nil {
				continue
			}
			row[i] = flatten(v)
		}
		rows = append(rows, row)
	}

	t, err := table.New(cols, rows)
	if err != nil {
		return nil, datasource.Fetchf(datasource.FetchInvalidShape, "%v", err)
	}
	return t, nil
}

// flatten keeps scalars as-is and stringifies nested structures.
func flatten(v any) any {
	switch v.(type) {
	case string, float64, bool:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
