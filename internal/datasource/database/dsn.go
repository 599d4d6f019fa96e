package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"bivis/internal/config"
)

// openRunner picks the connection stack for the configured engine. Postgres
// goes through pgxpool; everything else through database/sql.
func openRunner(ctx context.Context, cfg config.DatabaseConfig) (runner, error) {
	switch normalizeEngine(cfg.Engine) {
	case config.EnginePostgres:
		pool, err := pgxpool.New(ctx, postgresDSN(cfg))
		if err != nil {
			return nil, fmt.Errorf("pgxpool: %w", err)
		}
		return &pgxRunner{pool: pool}, nil
	case config.EngineMySQL:
		return openSQL("mysql", mysqlDSN(cfg))
	case config.EngineMSSQL:
		return openSQL("sqlserver", mssqlDSN(cfg))
	case config.EngineSQLite:
		return openSQL("sqlite", sqliteDSN(cfg))
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func normalizeEngine(engine string) string {
	switch engine {
	case "postgresql":
		return config.EnginePostgres
	case "sqlserver":
		return config.EngineMSSQL
	default:
		return engine
	}
}

func postgresDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   hostPort(cfg.Host, cfg.Port, 5432),
		Path:   "/" + cfg.Database,
	}
	return u.String()
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	// parseTime makes the driver hand back time.Time for temporal columns.
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
		cfg.User, cfg.Password, hostPort(cfg.Host, cfg.Port, 3306), cfg.Database)
}

func mssqlDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     hostPort(cfg.Host, cfg.Port, 1433),
		RawQuery: url.Values{"database": {cfg.Database}}.Encode(),
	}
	return u.String()
}

func sqliteDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return cfg.Database
}

func hostPort(host string, port, def int) string {
	if port == 0 {
		port = def
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// pgxRunner runs queries over a pgx v5 pool.
type pgxRunner struct {
	pool *pgxpool.Pool
}

func (r *pgxRunner) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

func (r *pgxRunner) Query(ctx context.Context, stmt string) ([]string, [][]any, error) {
	rows, err := r.pool.Query(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = normalizeValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

func (r *pgxRunner) Close() error {
	r.pool.Close()
	return nil
}

// sqlRunner runs queries over database/sql.
type sqlRunner struct {
	db *sql.DB
}

func openSQL(driver, dsn string) (runner, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &sqlRunner{db: db}, nil
}

func (r *sqlRunner) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *sqlRunner) Query(ctx context.Context, stmt string) ([]string, [][]any, error) {
	rows, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

func (r *sqlRunner) Close() error { return r.db.Close() }

// normalizeValue maps driver byte slices to strings so downstream comparison
// and formatting see one representation.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
