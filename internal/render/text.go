package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/dbcrawl/internal/schema"
	"github.com/sadopc/dbcrawl/internal/theme"
)

const indentUnit = "  "

// Text renders the catalog as an indented report styled with th.
func Text(cat *schema.Catalog, th *theme.Theme) string {
	r := textRenderer{cat: cat, th: th, hl: NewHighlighter(cat.Product)}
	r.catalog()
	return r.b.String()
}

// Table renders the detail of a single table: columns, indexes, foreign keys,
// triggers and definition.
func Table(cat *schema.Catalog, t *schema.Table, th *theme.Theme) string {
	r := textRenderer{cat: cat, th: th, hl: NewHighlighter(cat.Product)}
	r.table(t)
	return strings.TrimLeft(r.b.String(), "\n")
}

// Routine renders the signature, remarks and definition of a routine.
func Routine(cat *schema.Catalog, rt *schema.Routine, th *theme.Theme) string {
	r := textRenderer{cat: cat, th: th, hl: NewHighlighter(cat.Product)}
	r.routine(rt)
	return strings.TrimLeft(r.b.String(), "\n")
}

type textRenderer struct {
	cat *schema.Catalog
	th  *theme.Theme
	hl  *Highlighter
	b   strings.Builder
}

func (r *textRenderer) line(depth int, parts ...string) {
	r.b.WriteString(strings.Repeat(indentUnit, depth))
	r.b.WriteString(strings.Join(parts, " "))
	r.b.WriteByte('\n')
}

func (r *textRenderer) catalog() {
	title := r.cat.Name
	if title == "" {
		title = "(unnamed)"
	}
	if r.cat.Product != "" {
		title += " " + r.th.MutedText.Render("("+r.cat.Product+")")
	}
	r.line(0, r.th.Database.Render(title))

	for _, s := range r.cat.Schemas() {
		r.b.WriteByte('\n')
		name := s.FullName()
		if name == "" {
			name = "(default)"
		}
		r.line(0, r.th.Heading.Render("Schema "+name))
		for _, t := range r.cat.TablesIn(s.ID) {
			r.table(t)
		}
		for _, rt := range r.cat.RoutinesIn(s.ID) {
			r.routine(rt)
		}
		for _, q := range r.cat.SequencesIn(s.ID) {
			r.sequence(q)
		}
		for _, y := range r.cat.SynonymsIn(s.ID) {
			r.line(1, r.th.Synonym.Render(y.Name), r.th.MutedText.Render("->"), r.th.Reference.Render(y.ReferencedName()))
		}
	}

	n := r.cat.Counts()
	r.b.WriteByte('\n')
	r.line(0, r.th.MutedText.Render(fmt.Sprintf(
		"%d schemas, %d tables, %d columns, %d foreign keys, %d routines, %d sequences, %d synonyms",
		n.Schemas, n.Tables, n.Columns, n.ForeignKeys, n.Routines, n.Sequences, n.Synonyms)))
}

func (r *textRenderer) table(t *schema.Table) {
	style := r.th.Table
	if t.IsView() {
		style = r.th.View
	}
	head := []string{style.Render(t.Name), r.th.MutedText.Render("[" + t.Type + "]")}
	if n, ok := t.RowCount(); ok {
		head = append(head, r.th.MutedText.Render(plural(n, "row")))
	}
	r.b.WriteByte('\n')
	r.line(1, head...)
	if t.Remarks != "" {
		r.line(2, r.th.MutedText.Render(t.Remarks))
	}

	if len(t.Columns) > 0 {
		r.columns(t.Columns)
	}

	if len(t.Indexes) > 0 {
		r.line(2, r.th.Heading.Render("Indexes"))
		for _, idx := range t.Indexes {
			var flags []string
			if idx.Primary {
				flags = append(flags, "primary")
			} else if idx.Unique {
				flags = append(flags, "unique")
			}
			r.line(3, r.th.Column.Render(idx.Name), "("+strings.Join(idx.Columns, ", ")+")", r.th.MutedText.Render(strings.Join(flags, " ")))
		}
	}

	imported := r.cat.ImportedKeys(t)
	exported := r.cat.ExportedKeys(t)
	if len(imported)+len(exported) > 0 {
		r.line(2, r.th.Heading.Render("Foreign keys"))
		for _, fk := range imported {
			r.foreignKey(fk, "->", fk.Parent)
		}
		for _, fk := range exported {
			if fk.IsSelfReferencing() {
				continue
			}
			r.foreignKey(fk, "<-", fk.Child)
		}
	}

	if len(t.Triggers) > 0 {
		r.line(2, r.th.Heading.Render("Triggers"))
		for _, tr := range t.Triggers {
			r.line(3, r.th.Routine.Render(tr.Name), r.th.MutedText.Render(strings.TrimSpace(tr.Timing+" "+tr.Event)))
			if tr.Action != "" {
				r.definition(4, tr.Action)
			}
		}
	}

	if t.Definition != "" {
		r.line(2, r.th.Heading.Render("Definition"))
		r.definition(3, t.Definition)
	}
}

func (r *textRenderer) columns(cols []*schema.Column) {
	nameW, typeW := 0, 0
	for _, c := range cols {
		nameW = max(nameW, lipgloss.Width(c.Name))
		typeW = max(typeW, lipgloss.Width(columnType(c)))
	}
	r.line(2, r.th.Heading.Render("Columns"))
	for _, c := range cols {
		name := r.th.Column
		if c.PartOfPK {
			name = r.th.PrimaryKey
		}
		var flags []string
		if c.PartOfPK {
			flags = append(flags, "pk")
		}
		if !c.Nullable {
			flags = append(flags, "not null")
		}
		if c.AutoIncrement {
			flags = append(flags, "auto")
		}
		if c.Generated {
			flags = append(flags, "generated")
		}
		if c.Default != "" {
			flags = append(flags, "default "+c.Default)
		}
		parts := []string{
			r.th.MutedText.Render(fmt.Sprintf("%3d", c.Ordinal)),
			name.Render(pad(c.Name, nameW)),
			r.th.ColumnType.Render(pad(columnType(c), typeW)),
		}
		if len(flags) > 0 {
			parts = append(parts, r.th.MutedText.Render(strings.Join(flags, ", ")))
		}
		if c.Remarks != "" {
			parts = append(parts, r.th.MutedText.Render("-- "+c.Remarks))
		}
		r.line(3, strings.TrimRight(strings.Join(parts, " "), " "))
	}
}

func (r *textRenderer) foreignKey(fk *schema.ForeignKey, arrow string, other schema.TableID) {
	pairs := make([]string, len(fk.Columns))
	for i, c := range fk.Columns {
		pairs[i] = c.Child + " -> " + c.Parent
	}
	parts := []string{
		r.th.MutedText.Render(arrow),
		r.th.Reference.Render(r.cat.Table(other).FullName()),
		r.th.Column.Render(fk.Name),
		"(" + strings.Join(pairs, ", ") + ")",
	}
	if fk.DeleteRule != "" {
		parts = append(parts, r.th.MutedText.Render("on delete "+fk.DeleteRule))
	}
	if fk.UpdateRule != "" {
		parts = append(parts, r.th.MutedText.Render("on update "+fk.UpdateRule))
	}
	r.line(3, parts...)
}

func (r *textRenderer) routine(rt *schema.Routine) {
	var params []string
	var results []string
	for _, c := range rt.Columns {
		switch c.Kind {
		case schema.ParamReturn:
			results = append(results, c.TypeName)
		case schema.ParamResult:
			results = append(results, strings.TrimSpace(c.Name+" "+c.TypeName))
		default:
			p := strings.TrimSpace(c.Name + " " + c.TypeName)
			if c.Kind != schema.ParamIn && c.Kind != schema.ParamUnknown {
				p = strings.ToUpper(string(c.Kind)) + " " + p
			}
			params = append(params, p)
		}
	}
	sig := r.th.Routine.Render(rt.Name) + "(" + strings.Join(params, ", ") + ")"
	ret := rt.ReturnType
	if ret == "" && len(results) > 0 {
		ret = strings.Join(results, ", ")
	}
	if ret != "" {
		sig += " " + r.th.MutedText.Render("->") + " " + r.th.ColumnType.Render(ret)
	}
	head := []string{sig, r.th.MutedText.Render("[" + string(rt.Type) + "]")}
	if rt.SpecificName != "" && rt.SpecificName != rt.Name {
		head = append(head, r.th.MutedText.Render(rt.SpecificName))
	}
	r.b.WriteByte('\n')
	r.line(1, head...)
	if rt.Remarks != "" {
		r.line(2, r.th.MutedText.Render(rt.Remarks))
	}
	if rt.Definition != "" {
		r.line(2, r.th.Heading.Render("Definition"))
		r.definition(3, rt.Definition)
	}
}

func (r *textRenderer) sequence(q *schema.Sequence) {
	desc := fmt.Sprintf("increment %d", q.Increment)
	if q.Minimum != "" || q.Maximum != "" {
		desc += fmt.Sprintf(", %s..%s", q.Minimum, q.Maximum)
	}
	if q.Cycle {
		desc += ", cycle"
	}
	r.b.WriteByte('\n')
	r.line(1, r.th.Sequence.Render(q.Name), r.th.MutedText.Render("[SEQUENCE]"), r.th.MutedText.Render(desc))
}

func (r *textRenderer) definition(depth int, sql string) {
	sql = strings.TrimSpace(sql)
	for _, l := range strings.Split(r.hl.Highlight(sql, r.th), "\n") {
		r.line(depth, l)
	}
}

func columnType(c *schema.Column) string {
	switch {
	case c.Size > 0 && c.DecimalDigits > 0:
		return fmt.Sprintf("%s(%d,%d)", c.TypeName, c.Size, c.DecimalDigits)
	case c.Size > 0 && !strings.Contains(c.TypeName, "("):
		return fmt.Sprintf("%s(%d)", c.TypeName, c.Size)
	}
	return c.TypeName
}

func pad(s string, w int) string {
	if n := lipgloss.Width(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

func plural(n int64, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
