package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/dbcrawl/internal/schema"
	"github.com/sadopc/dbcrawl/internal/snapshot"
	"github.com/sadopc/dbcrawl/internal/theme"
)

func library(t *testing.T) *schema.Catalog {
	t.Helper()
	cat := schema.NewCatalog("library", "postgres")
	s := cat.AddSchema("library", "public")

	authors := cat.Table(cat.AddTable(s, "authors", schema.TypeTable))
	authors.AddColumn(schema.Column{Name: "id", TypeName: "int4", PartOfPK: true})
	authors.AddColumn(schema.Column{Name: "name", TypeName: "varchar", Size: 100, Nullable: true, Remarks: "display name"})
	authors.Indexes = append(authors.Indexes, schema.Index{Name: "authors_pkey", Columns: []string{"id"}, Unique: true, Primary: true})
	authors.SetRowCount(1)

	books := cat.Table(cat.AddTable(s, "books", schema.TypeTable))
	books.Remarks = "every edition"
	books.AddColumn(schema.Column{Name: "id", TypeName: "int4", PartOfPK: true})
	books.AddColumn(schema.Column{Name: "author_id", TypeName: "int4"})
	books.Triggers = append(books.Triggers, schema.Trigger{Name: "books_audit", Timing: "AFTER", Event: "UPDATE", Action: "EXECUTE FUNCTION audit()"})

	view := cat.Table(cat.AddTable(s, "prolific", schema.TypeView))
	view.Definition = "SELECT author_id, count(*) FROM books GROUP BY author_id"

	if _, err := cat.AddForeignKey(schema.ForeignKey{
		Name:       "books_author_fk",
		Child:      books.ID,
		Parent:     authors.ID,
		Columns:    []schema.ColumnRef{{Child: "author_id", Parent: "id"}},
		DeleteRule: "RESTRICT",
	}); err != nil {
		t.Fatal(err)
	}

	fn := cat.Routine(cat.AddRoutine(s, "book_count", "book_count_1", schema.RoutineFunction))
	fn.AddColumn(schema.RoutineColumn{Name: "author", Kind: schema.ParamIn, TypeName: "int4"})
	fn.AddColumn(schema.RoutineColumn{Kind: schema.ParamReturn, TypeName: "int8"})
	cat.AddSequence(s, schema.Sequence{Name: "books_id_seq", Increment: 1, Minimum: "1", Maximum: "100"})
	cat.AddSynonym(s, schema.Synonym{Name: "writers", RefSchema: "public", RefName: "authors"})
	return cat
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"", FormatText, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, library(t), FormatText, nil); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	out := buf.String()

	wants := []string{
		"library (postgres)",
		"Schema library.public",
		"authors [TABLE] 1 row",
		"varchar(100)",
		"pk, not null",
		"-- display name",
		"every edition",
		"-> library.public.authors books_author_fk (author_id -> id) on delete RESTRICT",
		"<- library.public.books books_author_fk",
		"books_audit AFTER UPDATE",
		"prolific [VIEW]",
		"GROUP BY author_id",
		"book_count(author int4) -> int8 [FUNCTION] book_count_1",
		"books_id_seq [SEQUENCE] increment 1, 1..100",
		"writers -> public.authors",
		"1 schemas, 3 tables, 4 columns, 1 foreign keys, 1 routines, 1 sequences, 1 synonyms",
	}
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("text output missing %q\n%s", w, out)
		}
	}
	if strings.Contains(out, "books [TABLE] 0 rows") {
		t.Error("a table without a row count must not show one")
	}
}

func TestWriteTextColumnsAligned(t *testing.T) {
	cat := schema.NewCatalog("library", "")
	s := cat.AddSchema("", "main")
	books := cat.Table(cat.AddTable(s, "books", schema.TypeTable))
	books.AddColumn(schema.Column{Name: "id", TypeName: "integer"})
	books.AddColumn(schema.Column{Name: "author_id", TypeName: "integer"})

	var cols []int
	for _, l := range strings.Split(Text(cat, theme.Plain()), "\n") {
		if i := strings.Index(l, "integer"); i >= 0 {
			cols = append(cols, i)
		}
	}
	if len(cols) != 2 || cols[0] != cols[1] {
		t.Errorf("type columns at %v, want two aligned", cols)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, library(t), FormatJSON, theme.Default()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	var doc snapshot.Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if doc.Name != "library" || len(doc.Schemas) != 1 || len(doc.Schemas[0].Tables) != 3 {
		t.Errorf("document = %+v", doc)
	}
	if !strings.Contains(buf.String(), `"row_count": 1`) {
		t.Error("JSON output missing row count")
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, library(t), FormatYAML, nil); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	var doc snapshot.Document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	cat, err := doc.Catalog()
	if err != nil {
		t.Fatalf("Catalog() error: %v", err)
	}
	if got := cat.Counts(); got.Tables != 3 || got.ForeignKeys != 1 || got.Synonyms != 1 {
		t.Errorf("Counts() = %+v", got)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, library(t), Format("csv"), nil); err == nil {
		t.Error("Write(csv) error = nil")
	}
}

func TestTableAndRoutineDetail(t *testing.T) {
	cat := library(t)
	sid, _ := cat.LookupSchema("library", "public")
	bid, _ := cat.LookupTable(sid, "books")

	got := Table(cat, cat.Table(bid), theme.Plain())
	if !strings.HasPrefix(got, "  books [TABLE]") {
		t.Errorf("Table() starts with %q", strings.SplitN(got, "\n", 2)[0])
	}
	if !strings.Contains(got, "books_author_fk") || strings.Contains(got, "Schema ") {
		t.Errorf("Table() = %q", got)
	}

	rid, _ := cat.LookupRoutine(sid, "book_count_1")
	if got := Routine(cat, cat.Routine(rid), theme.Plain()); !strings.Contains(got, "book_count(author int4)") {
		t.Errorf("Routine() = %q", got)
	}
}
