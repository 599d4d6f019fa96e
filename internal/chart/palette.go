package chart

// themes maps a color_theme name to its ordered palette. "default" is the
// ten-color qualitative set most plotting libraries ship; the named themes
// are curated five-color sets.
var themes = map[string][]string{
	"default": {
		"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
		"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
	},
	"business": {"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd"},
	"ocean":    {"#006BA4", "#FF800E", "#ABABAB", "#595959", "#5F9ED1"},
	"earth":    {"#A6761D", "#E6AB02", "#66A61E", "#E7298A", "#7570B3"},
	"sunset":   {"#FC8D62", "#8DA0CB", "#E78AC3", "#A6D854", "#FFD92F"},
}

// Palette resolves a theme name to its color list. Unknown or empty names
// fall back to the default palette.
func Palette(theme string) []string {
	if p, ok := themes[theme]; ok {
		return p
	}
	return themes["default"]
}

// colorFor picks the color for the i-th category value. An explicit custom
// color for the value wins; otherwise the palette cycles by index.
func colorFor(custom map[string]string, palette []string, value string, i int) string {
	if c, ok := custom[value]; ok {
		return c
	}
	return palette[i%len(palette)]
}
