package config

import (
	"sort"
	"strconv"
	"strings"
)

// Query narrows a fetch: optional column projection, a row limit, an optional
// source-specific WHERE fragment or full SQL override, and simple ad-hoc
// per-column conditions applied client-side after the fetch.
//
// A nil *Query means "everything".
type Query struct {
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Limit   int      `json:"limit,omitempty" yaml:"limit,omitempty"`

	// Where is pushed into the generated SQL for database sources that build
	// their own statement. Ignored by file and API sources.
	Where string `json:"where,omitempty" yaml:"where,omitempty"`

	// SQL overrides statement generation entirely (database sources only).
	SQL string `json:"sql,omitempty" yaml:"sql,omitempty"`

	Conditions map[string]Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Signature returns a stable textual form of the resolved query, used as the
// fetch-cache key. Two queries with the same signature must produce the same
// result set from an unchanged source. Map iteration order is removed by
// sorting condition columns.
func (q *Query) Signature() string {
	if q == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("cols=")
	b.WriteString(strings.Join(q.Columns, ","))
	b.WriteString(";limit=")
	b.WriteString(strconv.Itoa(q.Limit))
	b.WriteString(";where=")
	b.WriteString(q.Where)
	b.WriteString(";sql=")
	b.WriteString(q.SQL)

	if len(q.Conditions) > 0 {
		keys := make([]string, 0, len(q.Conditions))
		for k := range q.Conditions {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c := q.Conditions[k]
			b.WriteString(";cond:")
			b.WriteString(k)
			if c.Min != nil {
				b.WriteString(">=")
				b.WriteString(strconv.FormatFloat(*c.Min, 'g', -1, 64))
			}
			if c.Max != nil {
				b.WriteString("<=")
				b.WriteString(strconv.FormatFloat(*c.Max, 'g', -1, 64))
			}
			if len(c.Values) > 0 {
				b.WriteString(" in ")
				b.WriteString(strings.Join(c.Values, ","))
			}
		}
	}
	return b.String()
}
