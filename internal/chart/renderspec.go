package chart

// RenderSpec is the type-tagged payload handed to a rendering layer. Exactly
// one of the payload sections is populated, selected by Type: Series for
// line, bar, scatter, area, histogram, and combo; Slices for pie; Table for
// table. The structure is plain data so it serializes cleanly to JSON for
// whatever draws it.
type RenderSpec struct {
	ChartID string `json:"chart_id,omitempty"`
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`

	XLabel string `json:"x_label,omitempty"`
	YLabel string `json:"y_label,omitempty"`

	ShowLabels bool `json:"show_labels,omitempty"`
	ShowLegend bool `json:"show_legend,omitempty"`

	Series []Series   `json:"series,omitempty"`
	Slices []Slice    `json:"slices,omitempty"`
	Table  *TableData `json:"table,omitempty"`
}

// Series is one aligned x/y sequence. All series of a spec share the same
// ordered X keys; a Y position with no data carries nil, not a dropped entry.
type Series struct {
	Name string `json:"name"`

	// Kind is the mark type for this series ("bar", "line", ...). Combo
	// charts mix kinds; for every other chart type it matches the spec type.
	Kind string `json:"kind"`

	// Axis selects the y-axis: 0 primary, 1 secondary (combo y2).
	Axis int `json:"axis,omitempty"`

	X     []string `json:"x"`
	Y     []any    `json:"y"`
	Color string   `json:"color,omitempty"`
}

// Slice is one pie segment.
type Slice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color,omitempty"`
}

// TableData is the table-chart payload. Horizontal orientation keeps the
// source shape; vertical transposes it so each source column becomes a row
// whose first cell is the column name.
type TableData struct {
	Columns     []string `json:"columns"`
	Rows        [][]any  `json:"rows"`
	Orientation string   `json:"orientation"`
}
