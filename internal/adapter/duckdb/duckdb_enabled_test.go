//go:build duckdb

package duckdb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sadopc/dbcrawl/internal/adapter"
)

const fixture = `
CREATE TABLE publishers (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL);
CREATE TABLE books (
  id INTEGER PRIMARY KEY,
  title VARCHAR(200) NOT NULL,
  price DECIMAL(10, 2),
  publisher_id INTEGER REFERENCES publishers (id)
);
CREATE VIEW cheap_books AS SELECT id, title FROM books WHERE price < 10;
CREATE SEQUENCE ticket_seq INCREMENT BY 5;
CREATE MACRO add_tax(amount, rate) AS amount * (1 + rate);
INSERT INTO publishers VALUES (1, 'Acme'), (2, 'Globex');
`

func openTest(t *testing.T) *duckdbConn {
	t.Helper()
	ctx := context.Background()
	conn, err := (&duckdbAdapter{}).Connect(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	dc := conn.(*duckdbConn)
	for _, stmt := range strings.Split(fixture, ";\n") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := dc.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	return dc
}

func TestMetadata(t *testing.T) {
	conn := openTest(t)
	ctx := context.Background()
	scope := adapter.Scope{Schema: "main"}

	tables, err := conn.Tables(ctx, scope, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range tables {
		names = append(names, r.Name+":"+r.Type)
	}
	if got := strings.Join(names, ","); got != "books:TABLE,cheap_books:VIEW,publishers:TABLE" {
		t.Errorf("Tables() = %s", got)
	}

	cols, err := conn.Columns(ctx, scope, "books")
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 4 || !cols[0].PartOfPK || cols[1].Nullable {
		t.Errorf("Columns(books) = %+v", cols)
	}

	fks, err := conn.ForeignKeys(ctx, scope, "books")
	if err != nil {
		t.Fatal(err)
	}
	if len(fks) != 1 || fks[0].PKTable != "publishers" || fks[0].PKColumn != "id" || fks[0].FKColumn != "publisher_id" {
		t.Errorf("ForeignKeys(books) = %+v", fks)
	}

	routines, err := conn.Routines(ctx, scope, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(routines) != 1 || routines[0].Name != "add_tax" {
		t.Fatalf("Routines() = %+v", routines)
	}
	params, err := conn.RoutineColumns(ctx, scope, "add_tax")
	if err != nil {
		t.Fatal(err)
	}
	if len(params) != 2 || params[0].Name != "amount" || params[1].Ordinal != 2 {
		t.Errorf("RoutineColumns() = %+v", params)
	}

	seqs, err := conn.Sequences(ctx, scope, "")
	if err != nil || len(seqs) != 1 || seqs[0].Increment != 5 {
		t.Errorf("Sequences() = %+v, %v", seqs, err)
	}

	if _, err := conn.Triggers(ctx, scope, ""); !errors.Is(err, adapter.ErrUnsupported) {
		t.Errorf("Triggers() error = %v, want ErrUnsupported", err)
	}

	n, err := conn.CountRows(ctx, conn.DatabaseName(), "main", "publishers")
	if err != nil || n != 2 {
		t.Errorf("CountRows() = %d, %v, want 2", n, err)
	}
}
