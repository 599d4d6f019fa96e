// Package database implements the SQL-backed datasource adapter. Postgres
// connects through pgx v5; MySQL, SQL Server, and SQLite go through
// database/sql with their respective drivers.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bivis/internal/config"
	"bivis/internal/datasource"
	"bivis/internal/metrics"
	"bivis/internal/schema"
	"bivis/pkg/table"
)

const (
	connectTimeout  = 5 * time.Second
	defaultTimeout  = 30 * time.Second
	defaultRowLimit = 10000
)

func init() {
	datasource.Register(config.SourceDatabase, func(cfg config.DataSourceConfig) (datasource.Adapter, error) {
		return New(cfg), nil
	})
}

// runner abstracts the two connection stacks behind one query surface.
type runner interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, stmt string) (cols []string, rows [][]any, err error)
	Close() error
}

// Adapter runs read-only queries against one configured database. It caches
// the most recent fetch and is safe for concurrent use.
type Adapter struct {
	cfg   config.DatabaseConfig
	name  string
	cache datasource.FetchCache

	mu  sync.Mutex
	run runner // guarded by mu
}

// New returns an adapter bound to the database section of cfg. The connection
// is not opened until Connect.
func New(cfg config.DataSourceConfig) *Adapter {
	return &Adapter{cfg: *cfg.Database, name: cfg.Name}
}

// Connect opens the pool and verifies the server answers a ping within
// connectTimeout. A live connection is reused; a stale one is replaced and
// closed.
func (a *Adapter) Connect(ctx context.Context) error {
	if cur := a.runner(); cur != nil {
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := cur.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
	}

	r, err := openRunner(ctx, a.cfg)
	if err != nil {
		return &datasource.ConnectionError{Reason: "open " + a.cfg.Engine, Err: err}
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		_ = r.Close()
		return &datasource.ConnectionError{Reason: "ping " + a.cfg.Engine, Err: err}
	}

	a.mu.Lock()
	old := a.run
	a.run = r
	a.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// runner returns the live runner, or nil before a successful Connect.
func (a *Adapter) runner() runner {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.run
}

// Fetch executes the resolved statement and applies the client-side parts of
// the query. Identical repeated queries return the cached table.
func (a *Adapter) Fetch(ctx context.Context, q *config.Query) (*table.Table, error) {
	run := a.runner()
	if run == nil {
		return nil, datasource.ErrNotConnected
	}
	stmt, pushed := a.statement(q)
	key := datasource.Key("db", a.cfg.Engine, stmt, q.Signature())
	return a.cache.Do(key, func() (*table.Table, error) {
		start := time.Now()
		t, err := a.query(ctx, run, stmt, q, pushed)
		rows := 0
		if t != nil {
			rows = t.NumRows()
		}
		metrics.RecordFetch("database", err, time.Since(start), rows)
		return t, err
	})
}

func (a *Adapter) query(ctx context.Context, run runner, stmt string, q *config.Query, pushed bool) (*table.Table, error) {
	timeout := defaultTimeout
	if a.cfg.TimeoutSec > 0 {
		timeout = time.Duration(a.cfg.TimeoutSec) * time.Second
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cols, rows, err := run.Query(qctx, stmt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, datasource.Fetchf(datasource.FetchTimeout, "query exceeded %s", timeout)
		}
		return nil, &datasource.FetchError{Kind: datasource.FetchQuery, Err: err}
	}

	t, err := table.New(cols, rows)
	if err != nil {
		return nil, datasource.Fetchf(datasource.FetchInvalidShape, "%v", err)
	}
	if pushed {
		// Projection and limit are already in the statement; only the
		// ad-hoc conditions remain.
		leftover := &config.Query{Conditions: q.Conditions}
		return datasource.ApplyQuery(t, leftover)
	}
	return datasource.ApplyQuery(t, q)
}

// statement resolves the SQL to run. An explicit query statement wins over the
// configured one; otherwise a SELECT is generated from the configured table.
// The returned bool reports whether projection and limit were pushed into the
// statement.
func (a *Adapter) statement(q *config.Query) (string, bool) {
	if q != nil && q.SQL != "" {
		return q.SQL, false
	}
	if a.cfg.SQL != "" {
		return a.cfg.SQL, false
	}

	sel := "*"
	where := ""
	limit := defaultRowLimit
	var conditioned bool
	if q != nil {
		conditioned = len(q.Conditions) > 0
		if len(q.Columns) > 0 {
			quoted := make([]string, len(q.Columns))
			for i, c := range q.Columns {
				quoted[i] = quoteIdent(a.cfg.Engine, c)
			}
			sel = strings.Join(quoted, ", ")
		}
		if q.Where != "" {
			where = " WHERE " + q.Where
		}
		if q.Limit > 0 {
			limit = q.Limit
		}
	}
	// Pushing a limit below row conditions would truncate before filtering,
	// so conditioned queries fetch unbounded and limit client-side.
	if conditioned {
		return fmt.Sprintf("SELECT %s FROM %s%s", sel, a.cfg.Table, where), false
	}
	if a.cfg.Engine == config.EngineMSSQL {
		return fmt.Sprintf("SELECT TOP %d %s FROM %s%s", limit, sel, a.cfg.Table, where), true
	}
	return fmt.Sprintf("SELECT %s FROM %s%s LIMIT %d", sel, a.cfg.Table, where, limit), true
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

// Refresh drops the cached table. The connection stays open.
func (a *Adapter) Refresh() { a.cache.Invalidate() }

// Close shuts the pool down.
func (a *Adapter) Close() error {
	a.mu.Lock()
	r := a.run
	a.run = nil
	a.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Close()
}

func quoteIdent(engine, ident string) string {
	switch engine {
	case config.EngineMySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case config.EngineMSSQL:
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}
