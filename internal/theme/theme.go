// Package theme holds the lipgloss styles used to render a crawled catalog,
// both in the text report and in the interactive browser. Every visual
// element references a style held in a Theme so the look can be swapped by
// name from the config file.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme holds lipgloss.Style values for every element of a catalog view.
type Theme struct {
	Name string

	// Catalog tree
	Title      lipgloss.Style
	Database   lipgloss.Style
	Schema     lipgloss.Style
	Table      lipgloss.Style
	View       lipgloss.Style
	Routine    lipgloss.Style
	Sequence   lipgloss.Style
	Synonym    lipgloss.Style
	Column     lipgloss.Style
	ColumnType lipgloss.Style
	PrimaryKey lipgloss.Style
	Reference  lipgloss.Style
	Selected   lipgloss.Style

	// Section headings in the text report and the detail pane
	Heading lipgloss.Style

	// SQL syntax highlighting for definitions
	SQLKeyword  lipgloss.Style
	SQLString   lipgloss.Style
	SQLNumber   lipgloss.Style
	SQLComment  lipgloss.Style
	SQLOperator lipgloss.Style
	SQLFunction lipgloss.Style
	SQLType     lipgloss.Style

	// Status line
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	StatusValue lipgloss.Style

	// General
	FocusedBorder   lipgloss.Style
	UnfocusedBorder lipgloss.Style
	WarningText     lipgloss.Style
	MutedText       lipgloss.Style
}

// palette lists the colours a theme is built from.
type palette struct {
	name                                  string
	border, accent, database, schema      string
	table, view, routine, column, muted   string
	selectedFg, selectedBg                string
	keyword, str, number, comment, opName string
	function, typ, statusFg, statusBg     string
	warning                               string
}

func build(p palette) *Theme {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return &Theme{
		Name: p.name,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.accent)).
			PaddingLeft(1),
		Database:   fg(p.database).Bold(true),
		Schema:     fg(p.schema),
		Table:      fg(p.table),
		View:       fg(p.view),
		Routine:    fg(p.routine),
		Sequence:   fg(p.muted),
		Synonym:    fg(p.view).Italic(true),
		Column:     fg(p.column),
		ColumnType: fg(p.muted).Italic(true),
		PrimaryKey: fg(p.column).Bold(true),
		Reference:  fg(p.schema).Italic(true),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.selectedFg)).
			Background(lipgloss.Color(p.selectedBg)),

		Heading: fg(p.accent).Bold(true).Underline(true),

		SQLKeyword:  fg(p.keyword).Bold(true),
		SQLString:   fg(p.str),
		SQLNumber:   fg(p.number),
		SQLComment:  fg(p.comment).Italic(true),
		SQLOperator: fg(p.opName),
		SQLFunction: fg(p.function),
		SQLType:     fg(p.typ),

		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.statusFg)).
			Background(lipgloss.Color(p.statusBg)),
		StatusKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.statusFg)).
			Background(lipgloss.Color(p.statusBg)).
			PaddingLeft(1).
			PaddingRight(1),
		StatusValue: fg(p.column).PaddingLeft(1).PaddingRight(1),

		FocusedBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.accent)),
		UnfocusedBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.border)),
		WarningText: fg(p.warning),
		MutedText:   fg(p.muted),
	}
}

// ---------------------------------------------------------------------------
// Theme definitions
// ---------------------------------------------------------------------------

// newDefaultTheme builds the Default dark theme.
func newDefaultTheme() *Theme {
	return build(palette{
		name:       "default",
		border:     "#3C3C3C",
		accent:     "#569CD6",
		database:   "#DCDCAA",
		schema:     "#9CDCFE",
		table:      "#4EC9B0",
		view:       "#C586C0",
		routine:    "#DCDCAA",
		column:     "#D4D4D4",
		muted:      "#808080",
		selectedFg: "#FFFFFF",
		selectedBg: "#264F78",
		keyword:    "#569CD6",
		str:        "#CE9178",
		number:     "#B5CEA8",
		comment:    "#6A9955",
		opName:     "#D4D4D4",
		function:   "#DCDCAA",
		typ:        "#4EC9B0",
		statusFg:   "#FFFFFF",
		statusBg:   "#007ACC",
		warning:    "#CCA700",
	})
}

// newLightTheme builds the Light theme suitable for light terminal backgrounds.
func newLightTheme() *Theme {
	return build(palette{
		name:       "light",
		border:     "#D4D4D4",
		accent:     "#0451A5",
		database:   "#795E26",
		schema:     "#001080",
		table:      "#267F99",
		view:       "#AF00DB",
		routine:    "#795E26",
		column:     "#1E1E1E",
		muted:      "#A0A0A0",
		selectedFg: "#FFFFFF",
		selectedBg: "#0060C0",
		keyword:    "#0000FF",
		str:        "#A31515",
		number:     "#098658",
		comment:    "#008000",
		opName:     "#1E1E1E",
		function:   "#795E26",
		typ:        "#267F99",
		statusFg:   "#FFFFFF",
		statusBg:   "#0060C0",
		warning:    "#BF8803",
	})
}

// newMonokaiTheme builds a Monokai-inspired dark theme.
func newMonokaiTheme() *Theme {
	return build(palette{
		name:       "monokai",
		border:     "#49483E",
		accent:     "#F92672",
		database:   "#E6DB74",
		schema:     "#66D9EF",
		table:      "#A6E22E",
		view:       "#AE81FF",
		routine:    "#E6DB74",
		column:     "#F8F8F2",
		muted:      "#75715E",
		selectedFg: "#F8F8F2",
		selectedBg: "#49483E",
		keyword:    "#F92672",
		str:        "#E6DB74",
		number:     "#AE81FF",
		comment:    "#75715E",
		opName:     "#F92672",
		function:   "#A6E22E",
		typ:        "#66D9EF",
		statusFg:   "#272822",
		statusBg:   "#A6E22E",
		warning:    "#E6DB74",
	})
}

// ---------------------------------------------------------------------------
// Registry and accessors
// ---------------------------------------------------------------------------

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": newDefaultTheme(),
	"light":   newLightTheme(),
	"monokai": newMonokaiTheme(),
}

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the theme identified by name. If no theme with that name exists
// it falls back to the default theme.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}

// Plain returns a theme whose styles render text unchanged, for output
// redirected to a file or when colour is disabled.
func Plain() *Theme {
	return &Theme{Name: "plain"}
}
