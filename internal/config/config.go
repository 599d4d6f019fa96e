// Package config defines the canonical, serializable configuration model for
// the visual-analytics data pipeline. It is intentionally small and explicit
// so that datasource and chart definitions can be loaded from persisted
// JSON/YAML files and passed through the program without additional glue.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Go field names mirror the JSON/YAML structure used in saved
//     configuration files.
//  3. Validation before I/O: a DataSourceConfig is checked for required
//     fields before any disk or network access happens.
package config

import "encoding/json"

// Datasource variant tags. Exactly one variant section must be populated and
// must match the Type discriminator.
const (
	SourceFile     = "file"
	SourceDatabase = "database"
	SourceAPI      = "api"
)

// Database engine tags for DatabaseConfig.Engine.
const (
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
	EngineMSSQL    = "mssql"
	EngineSQLite   = "sqlite"
)

// DataSourceConfig is a tagged union over the supported source variants. The
// Type discriminator selects which variant section applies; the other
// sections must be nil.
type DataSourceConfig struct {
	// ID is the stable identifier used to key adapter instances.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable label used in logs.
	Name string `json:"name" yaml:"name"`

	// Type selects the variant: "file", "database", or "api".
	Type string `json:"type" yaml:"type"`

	File     *FileConfig     `json:"file,omitempty" yaml:"file,omitempty"`
	Database *DatabaseConfig `json:"database,omitempty" yaml:"database,omitempty"`
	API      *APIConfig      `json:"api,omitempty" yaml:"api,omitempty"`
}

// FileConfig holds options for the "file" source variant. CSV-style text and
// Excel workbooks are supported; the reader is chosen by file extension.
type FileConfig struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path" yaml:"path"`

	// Separator is the field delimiter for delimited text files. The first
	// rune is used; empty means ','.
	Separator string `json:"separator,omitempty" yaml:"separator,omitempty"`

	// Encoding is the character encoding of delimited text files: "utf-8"
	// (default), "latin-1"/"iso-8859-1", or "windows-1252". Ignored for
	// Excel workbooks.
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`

	// Sheet names the worksheet to read from an Excel workbook. Empty means
	// the first sheet.
	Sheet string `json:"sheet,omitempty" yaml:"sheet,omitempty"`

	// NoHeader indicates the first row carries data, not column names.
	// Columns are then synthesized as col_0, col_1, ...
	NoHeader bool `json:"no_header,omitempty" yaml:"no_header,omitempty"`

	// NormalizeHeaders rewrites header text into lowercase ASCII identifiers
	// (accents stripped, spaces to underscores).
	NormalizeHeaders bool `json:"normalize_headers,omitempty" yaml:"normalize_headers,omitempty"`
}

// DatabaseConfig holds options for the "database" source variant.
type DatabaseConfig struct {
	// Engine selects the driver: "postgres", "mysql", "mssql", or "sqlite".
	Engine string `json:"engine" yaml:"engine"`

	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	User     string `json:"user,omitempty" yaml:"user,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	// DSN, when set, is passed to the driver verbatim and overrides the
	// host/port/user/password/database fields.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`

	// Table names the table to select from when SQL is empty.
	Table string `json:"table,omitempty" yaml:"table,omitempty"`

	// SQL, when set, is executed verbatim; column projection and row limits
	// are then applied client-side.
	SQL string `json:"sql,omitempty" yaml:"sql,omitempty"`

	// TimeoutSec bounds a single fetch. Zero means the default (30s).
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
}

// APIConfig holds options for the "api" source variant.
type APIConfig struct {
	URL    string `json:"url" yaml:"url"`
	Method string `json:"method,omitempty" yaml:"method,omitempty"` // GET when empty

	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Params  map[string]string `json:"params,omitempty" yaml:"params,omitempty"`

	// Body is sent as a JSON request body for POST/PUT.
	Body map[string]any `json:"body,omitempty" yaml:"body,omitempty"`

	// ResultPath is a dot-separated key path locating the record array inside
	// the response document (e.g. "data.items"). Empty means the document
	// root.
	ResultPath string `json:"result_path,omitempty" yaml:"result_path,omitempty"`

	Auth *APIAuth `json:"auth,omitempty" yaml:"auth,omitempty"`

	// TimeoutSec bounds a single request. Zero means the default (30s).
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`

	// InsecureSkipVerify disables TLS certificate verification, for internal
	// endpoints with self-signed certificates.
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
}

// APIAuth carries either a bearer token (APIKey) or basic-auth credentials.
type APIAuth struct {
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// ChartConfig describes one chart: its type, field roles, aggregation, style,
// and optional declarative filters.
type ChartConfig struct {
	ID    string `json:"id" yaml:"id"`
	Type  string `json:"type" yaml:"type"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	X     string `json:"x,omitempty" yaml:"x,omitempty"`
	Y     string `json:"y,omitempty" yaml:"y,omitempty"`
	Y2    string `json:"y2,omitempty" yaml:"y2,omitempty"`
	Group string `json:"group,omitempty" yaml:"group,omitempty"`

	// AggFunc is one of sum, avg, count, max, min, none. Empty means sum.
	AggFunc string `json:"agg_function,omitempty" yaml:"agg_function,omitempty"`

	ColorTheme   string            `json:"color_theme,omitempty" yaml:"color_theme,omitempty"`
	CustomColors map[string]string `json:"custom_colors,omitempty" yaml:"custom_colors,omitempty"`
	ShowLabels   bool              `json:"show_labels,omitempty" yaml:"show_labels,omitempty"`
	ShowLegend   bool              `json:"show_legend,omitempty" yaml:"show_legend,omitempty"`

	// TableColumns and TableOrientation apply to type "table" only.
	TableColumns     []string `json:"table_columns,omitempty" yaml:"table_columns,omitempty"`
	TableOrientation string   `json:"table_orientation,omitempty" yaml:"table_orientation,omitempty"`

	// Limit caps row output for table charts. Zero means the default (100).
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`

	Filters *FilterSpec `json:"filters,omitempty" yaml:"filters,omitempty"`

	Interaction *InteractionRules `json:"interaction_rules,omitempty" yaml:"interaction_rules,omitempty"`

	// Options is a free-form bag for type-specific settings interpreted by
	// the chart resolver (e.g. "bins" for histograms, "combo_nulls" for combo
	// null alignment).
	Options Options `json:"options,omitempty" yaml:"options,omitempty"`
}

// InteractionRules selects how mark clicks behave on a dashboard.
type InteractionRules struct {
	// Mode is "filter" or "drill_down".
	Mode string `json:"mode" yaml:"mode"`
}

// FilterSpec is a composable predicate set. Predicates of all kinds combine
// with logical AND; within one category filter the included set matches with
// logical OR.
type FilterSpec struct {
	DateRanges   []DateRangeFilter   `json:"date_ranges,omitempty" yaml:"date_ranges,omitempty"`
	QuickPeriods []QuickPeriodFilter `json:"quick_periods,omitempty" yaml:"quick_periods,omitempty"`
	ValueRanges  []ValueRangeFilter  `json:"value_ranges,omitempty" yaml:"value_ranges,omitempty"`
	Categories   []CategoryFilter    `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Empty reports whether the spec holds no predicates.
func (s *FilterSpec) Empty() bool {
	return s == nil ||
		len(s.DateRanges) == 0 && len(s.QuickPeriods) == 0 &&
			len(s.ValueRanges) == 0 && len(s.Categories) == 0
}

// DateRangeFilter keeps rows whose date cell falls in [Start, End],
// inclusive. Bounds are "2006-01-02" dates.
type DateRangeFilter struct {
	Column string `json:"column" yaml:"column"`
	Start  string `json:"start" yaml:"start"`
	End    string `json:"end" yaml:"end"`
}

// QuickPeriodFilter keeps rows whose date cell falls in a named relative
// period, resolved against the current date at evaluation time. The period is
// never persisted as absolute dates.
type QuickPeriodFilter struct {
	Column string `json:"column" yaml:"column"`

	// Period is one of: today, yesterday, last_7_days, last_30_days,
	// this_month, last_month.
	Period string `json:"period" yaml:"period"`
}

// ValueRangeFilter keeps rows whose numeric cell lies within the inclusive
// bounds. A nil bound is open.
type ValueRangeFilter struct {
	Column string   `json:"column" yaml:"column"`
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// CategoryFilter keeps rows whose cell (in string form) is in Included (when
// non-empty) and not in Excluded.
type CategoryFilter struct {
	Column   string   `json:"column" yaml:"column"`
	Included []string `json:"included,omitempty" yaml:"included,omitempty"`
	Excluded []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

// Condition is a simple ad-hoc per-column fetch condition (distinct from the
// declarative FilterSpec): inclusive numeric bounds and/or a value allowlist.
type Condition struct {
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Options is a small helper to fetch typed values from arbitrary JSON/YAML
// maps without introducing a configuration framework. It performs only
// minimal type coercion and returns the provided default when a key is absent
// or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so float64 is accepted and truncated.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// UnmarshalJSON decodes a missing or null options object to a non-nil, empty
// map so call sites need no nil checks.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
