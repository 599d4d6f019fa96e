// Package file implements the filesystem-backed datasource adapter. It reads
// delimited text (CSV and friends) and Excel workbooks, chosen by extension,
// and normalizes them into the internal table representation.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"bivis/internal/config"
	"bivis/internal/datasource"
	"bivis/internal/metrics"
	"bivis/internal/schema"
	"bivis/pkg/table"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\ufeff"

func init() {
	datasource.Register(config.SourceFile, func(cfg config.DataSourceConfig) (datasource.Adapter, error) {
		return New(cfg), nil
	})
}

// Adapter reads one configured file. It caches the most recent fetch and is
// safe for concurrent use.
type Adapter struct {
	cfg   config.FileConfig
	name  string
	cache datasource.FetchCache
}

// New returns an adapter bound to the file section of cfg.
func New(cfg config.DataSourceConfig) *Adapter {
	return &Adapter{cfg: *cfg.File, name: cfg.Name}
}

// Connect verifies the configured path exists and is a regular file. No data
// is read.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &datasource.ConnectionError{Reason: "canceled", Err: err}
	}
	st, err := os.Stat(a.cfg.Path)
	if err != nil {
		return &datasource.ConnectionError{Reason: "file not accessible", Err: err}
	}
	if st.IsDir() {
		return &datasource.ConnectionError{Reason: fmt.Sprintf("%s is a directory", a.cfg.Path)}
	}
	return nil
}

// Fetch reads the file fully, then applies the query client-side. Identical
// repeated queries return the cached table.
func (a *Adapter) Fetch(ctx context.Context, q *config.Query) (*table.Table, error) {
	key := datasource.Key("file", a.cfg.Path, a.cfg.Separator, a.cfg.Sheet, a.cfg.Encoding, q.Signature())
	return a.cache.Do(key, func() (*table.Table, error) {
		start := time.Now()
		t, err := a.load(ctx)
		if err == nil {
			t, err = datasource.ApplyQuery(t, q)
		}
		rows := 0
		if t != nil {
			rows = t.NumRows()
		}
		metrics.RecordFetch("file", err, time.Since(start), rows)
		return t, err
	})
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

// Refresh drops the cached table.
func (a *Adapter) Refresh() { a.cache.Invalidate() }

// Close is a no-op; the adapter holds no file handles between fetches.
func (a *Adapter) Close() error { return nil }

func (a *Adapter) load(ctx context.Context) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(a.cfg.Path)) {
	case ".xlsx", ".xlsm":
		return a.loadExcel()
	default:
		return a.loadDelimited()
	}
}

// loadDelimited reads the whole file through encoding/csv in a tolerant mode:
// variable field counts are allowed, misaligned or unparsable rows are
// soft-dropped with a log line rather than failing the fetch.
func (a *Adapter) loadDelimited() (*table.Table, error) {
	f, err := os.Open(a.cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &datasource.FetchError{Kind: datasource.FetchNotFound, Err: err}
		}
		return nil, &datasource.FetchError{Kind: datasource.FetchQuery, Err: err}
	}
	defer f.Close()

	in, err := decodingReader(f, a.cfg.Encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(in)
	cr.Comma = separatorRune(a.cfg.Separator)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	var header []string
	if !a.cfg.NoHeader {
		h, err := cr.Read()
		if err != nil {
			return nil, datasource.Fetchf(datasource.FetchMalformed, "read header: %v", err)
		}
		header = a.headers(h)
	}

	var rows [][]any
	skipped := 0
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < 20 {
				log.Printf("file %s: skipping row %d: %v", a.name, line, err)
			}
			skipped++
			continue
		}
		if header == nil {
			header = syntheticHeader(len(rec))
		}
		if len(rec) != len(header) {
			if skipped < 20 {
				log.Printf("file %s: skipping row %d: %d fields, want %d",
					a.name, line, len(rec), len(header))
			}
			skipped++
			continue
		}
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = emptyToNil(strings.TrimSpace(cell))
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		log.Printf("file %s: %d rows skipped", a.name, skipped)
	}
	if header == nil {
		return nil, datasource.Fetchf(datasource.FetchMalformed, "%s: no rows", a.cfg.Path)
	}

	t, err := table.New(header, rows)
	if err != nil {
		return nil, datasource.Fetchf(datasource.FetchMalformed, "%v", err)
	}
	return t, nil
}

// loadExcel reads one worksheet of an Excel workbook. Rows shorter than the
// header (trailing empty cells are omitted by the format) are padded with
// nulls.
func (a *Adapter) loadExcel() (*table.Table, error) {
	wb, err := excelize.OpenFile(a.cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &datasource.FetchError{Kind: datasource.FetchNotFound, Err: err}
		}
		return nil, datasource.Fetchf(datasource.FetchMalformed, "open workbook: %v", err)
	}
	defer wb.Close()

	sheet := a.cfg.Sheet
	if sheet == "" {
		list := wb.GetSheetList()
		if len(list) == 0 {
			return nil, datasource.Fetchf(datasource.FetchMalformed, "%s: workbook has no sheets", a.cfg.Path)
		}
		sheet = list[0]
	}

	grid, err := wb.GetRows(sheet)
	if err != nil {
		return nil, datasource.Fetchf(datasource.FetchInvalidShape, "sheet %q: %v", sheet, err)
	}
	if len(grid) == 0 {
		return nil, datasource.Fetchf(datasource.FetchMalformed, "sheet %q is empty", sheet)
	}

	var header []string
	body := grid
	if a.cfg.NoHeader {
		header = syntheticHeader(len(grid[0]))
	} else {
		header = a.headers(grid[0])
		body = grid[1:]
	}

	rows := make([][]any, 0, len(body))
	for _, rec := range body {
		row := make([]any, len(header))
		for i := range header {
			if i < len(rec) {
				row[i] = emptyToNil(strings.TrimSpace(rec[i]))
			}
		}
		rows = append(rows, row)
	}

	t, err := table.New(header, rows)
	if err != nil {
		return nil, datasource.Fetchf(datasource.FetchMalformed, "%v", err)
	}
	return t, nil
}

// headers trims, strips the BOM from the first cell, and optionally
// normalizes names. Empty header cells get synthetic names so the table stays
// addressable.
func (a *Adapter) headers(h []string) []string {
	out := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if a.cfg.NormalizeHeaders {
			c = schema.NormalizeName(c)
		}
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		out[i] = c
	}
	return out
}

func syntheticHeader(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("col_%d", i)
	}
	return out
}

// decodingReader wraps r with a charset decoder when the configured encoding
// is not UTF-8.
func decodingReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin-1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case "windows-1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	default:
		return nil, datasource.Fetchf(datasource.FetchMalformed, "unknown encoding %q", encoding)
	}
}

func separatorRune(s string) rune {
	if s == "" {
		return ','
	}
	return []rune(s)[0]
}

// emptyToNil converts an empty string to nil; other values pass through.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
