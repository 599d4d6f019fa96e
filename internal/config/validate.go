// This file adds a lightweight linter/validator for datasource and chart
// configurations. It performs static checks over decoded values and returns a
// list of issues (errors and warnings) that callers can surface in a CLI or
// tests. Validation runs before any disk or network access.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "database.engine",
// "filters.quick_periods[0].period"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// FirstError returns the first error-severity issue as an error, or nil.
func FirstError(issues []Issue) error {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return iss
		}
	}
	return nil
}

// Chart types and aggregation functions known to the resolver.
var (
	chartTypes = map[string]bool{
		"line": true, "bar": true, "pie": true, "table": true,
		"combo": true, "scatter": true, "area": true, "histogram": true,
	}
	aggFuncs = map[string]bool{
		"": true, "sum": true, "avg": true, "count": true,
		"max": true, "min": true, "none": true,
	}
	quickPeriods = map[string]bool{
		"today": true, "yesterday": true, "last_7_days": true,
		"last_30_days": true, "this_month": true, "last_month": true,
	}
	dbEngines = map[string]bool{
		"postgres": true, "postgresql": true, "mysql": true,
		"mssql": true, "sqlserver": true, "sqlite": true,
	}
	fileEncodings = map[string]bool{
		"": true, "utf-8": true, "utf8": true,
		"latin-1": true, "iso-8859-1": true, "windows-1252": true,
	}
)

// ValidateDataSource performs static validation of a DataSourceConfig.
// It enforces the tagged-union invariant (exactly one variant section,
// matching the type discriminator) and per-variant required fields.
func ValidateDataSource(c DataSourceConfig) []Issue {
	var issues []Issue
	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.ID) == "" {
		warnf("id", "missing id; the adapter cannot be registered in a manager")
	}

	variants := 0
	if c.File != nil {
		variants++
	}
	if c.Database != nil {
		variants++
	}
	if c.API != nil {
		variants++
	}
	if variants != 1 {
		errf("type", "exactly one variant section must be set, found %d", variants)
		return issues
	}

	switch c.Type {
	case SourceFile:
		if c.File == nil {
			errf("file", "type is %q but the file section is missing", c.Type)
			break
		}
		if strings.TrimSpace(c.File.Path) == "" {
			errf("file.path", "path is required")
		}
		if !fileEncodings[strings.ToLower(c.File.Encoding)] {
			errf("file.encoding", "unknown encoding %q", c.File.Encoding)
		}
	case SourceDatabase:
		if c.Database == nil {
			errf("database", "type is %q but the database section is missing", c.Type)
			break
		}
		db := c.Database
		if !dbEngines[db.Engine] {
			errf("database.engine", "unknown engine %q", db.Engine)
		}
		if db.DSN == "" {
			if db.Engine == "sqlite" {
				if db.Database == "" {
					errf("database.database", "sqlite needs a database path or a dsn")
				}
			} else if db.Host == "" || db.Database == "" {
				errf("database.host", "host and database are required when dsn is empty")
			}
		}
		if db.Table == "" && db.SQL == "" {
			errf("database.table", "either table or sql is required")
		}
	case SourceAPI:
		if c.API == nil {
			errf("api", "type is %q but the api section is missing", c.Type)
			break
		}
		if strings.TrimSpace(c.API.URL) == "" {
			errf("api.url", "url is required")
		}
		switch strings.ToUpper(c.API.Method) {
		case "", "GET", "POST", "PUT":
		default:
			errf("api.method", "unsupported method %q", c.API.Method)
		}
	default:
		errf("type", "unknown datasource type %q", c.Type)
	}

	return issues
}

// ValidateChart performs static validation of a ChartConfig: known chart type
// and aggregation function, plus the field-role invariants (y required except
// for pie and table; table requires table_columns instead of x/y).
func ValidateChart(c ChartConfig) []Issue {
	var issues []Issue
	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}

	if !chartTypes[c.Type] {
		errf("type", "unsupported chart type %q", c.Type)
		return issues
	}
	if !aggFuncs[c.AggFunc] {
		errf("agg_function", "unknown aggregation function %q", c.AggFunc)
	}

	switch c.Type {
	case "table":
		if len(c.TableColumns) == 0 {
			errf("table_columns", "table charts require table_columns")
		}
		switch c.TableOrientation {
		case "", "horizontal", "vertical":
		default:
			errf("table_orientation", "unknown orientation %q", c.TableOrientation)
		}
	case "pie":
		if c.X == "" && c.Group == "" {
			errf("x", "pie charts require x or group as the slice label field")
		}
	default:
		if c.X == "" {
			errf("x", "%s charts require an x field", c.Type)
		}
		if c.Y == "" {
			errf("y", "%s charts require a y field", c.Type)
		}
		if c.Type == "combo" && c.Y2 == "" {
			errf("y2", "combo charts require a y2 field")
		}
	}

	if c.Filters != nil {
		for i, qp := range c.Filters.QuickPeriods {
			if !quickPeriods[qp.Period] {
				errf(fmt.Sprintf("filters.quick_periods[%d].period", i),
					"unknown quick period %q", qp.Period)
			}
		}
	}

	return issues
}
