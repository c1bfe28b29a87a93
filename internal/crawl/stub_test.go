package crawl

import (
	"context"
	"fmt"

	"github.com/sadopc/dbcrawl/internal/adapter"
)

// stubSource is an in-memory MetadataSource that counts its calls.
type stubSource struct {
	calls map[string]int
	fail  map[string]error

	schemas        []adapter.SchemaRow
	tables         []adapter.TableRow
	columns        []adapter.ColumnRow
	indexes        []adapter.IndexRow
	foreignKeys    []adapter.ForeignKeyRow
	triggers       []adapter.TriggerRow
	routines       []adapter.RoutineRow
	routineColumns []adapter.RoutineColumnRow
	sequences      []adapter.SequenceRow
	synonyms       []adapter.SynonymRow

	counts map[string]int64
}

func newStub() *stubSource {
	return &stubSource{calls: map[string]int{}, fail: map[string]error{}}
}

func (s *stubSource) total() int {
	var n int
	for _, c := range s.calls {
		n += c
	}
	return n
}

func scoped[R any](s *stubSource, method string, scope adapter.Scope, rows []R, where func(R) (string, string)) ([]R, error) {
	s.calls[method]++
	if err := s.fail[method]; err != nil {
		return nil, err
	}
	var out []R
	for _, r := range rows {
		if scope.Matches(where(r)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubSource) Schemas(context.Context) ([]adapter.SchemaRow, error) {
	s.calls["Schemas"]++
	return s.schemas, s.fail["Schemas"]
}

func (s *stubSource) Tables(_ context.Context, scope adapter.Scope, _ string, _ []string) ([]adapter.TableRow, error) {
	return scoped(s, "Tables", scope, s.tables, func(r adapter.TableRow) (string, string) { return r.Catalog, r.Schema })
}

func (s *stubSource) Columns(_ context.Context, scope adapter.Scope, _ string) ([]adapter.ColumnRow, error) {
	return scoped(s, "Columns", scope, s.columns, func(r adapter.ColumnRow) (string, string) { return r.Catalog, r.Schema })
}

func (s *stubSource) Indexes(_ context.Context, scope adapter.Scope, _ string) ([]adapter.IndexRow, error) {
	return scoped(s, "Indexes", scope, s.indexes, func(r adapter.IndexRow) (string, string) { return r.Catalog, r.Schema })
}

func (s *stubSource) ForeignKeys(_ context.Context, scope adapter.Scope, _ string) ([]adapter.ForeignKeyRow, error) {
	return scoped(s, "ForeignKeys", scope, s.foreignKeys, func(r adapter.ForeignKeyRow) (string, string) { return r.FKCatalog, r.FKSchema })
}

func (s *stubSource) Triggers(_ context.Context, scope adapter.Scope, _ string) ([]adapter.TriggerRow, error) {
	return scoped(s, "Triggers", scope, s.triggers, func(r adapter.TriggerRow) (string, string) { return r.Catalog, r.Schema })
}

func (s *stubSource) Routines(_ context.Context, scope adapter.Scope, _ string) ([]adapter.RoutineRow, error) {
	return scoped(s, "Routines", scope, s.routines, func(r adapter.RoutineRow) (string, string) { return r.Catalog, r.Schema })
}

func (s *stubSource) RoutineColumns(_ context.Context, scope adapter.Scope, _ string) ([]adapter.RoutineColumnRow, error) {
	return scoped(s, "RoutineColumns", scope, s.routineColumns, func(r adapter.RoutineColumnRow) (string, string) { return r.Catalog, r.Schema })
}

func (s *stubSource) Sequences(_ context.Context, scope adapter.Scope, _ string) ([]adapter.SequenceRow, error) {
	return scoped(s, "Sequences", scope, s.sequences, func(r adapter.SequenceRow) (string, string) { return r.Catalog, r.Schema })
}

func (s *stubSource) Synonyms(_ context.Context, scope adapter.Scope, _ string) ([]adapter.SynonymRow, error) {
	return scoped(s, "Synonyms", scope, s.synonyms, func(r adapter.SynonymRow) (string, string) { return r.Catalog, r.Schema })
}

func (s *stubSource) CountRows(_ context.Context, _, schemaName, table string) (int64, error) {
	s.calls["CountRows"]++
	if err := s.fail["CountRows"]; err != nil {
		return 0, err
	}
	n, ok := s.counts[schemaName+"."+table]
	if !ok {
		return 0, fmt.Errorf("no count for %s.%s", schemaName, table)
	}
	return n, nil
}

// shop returns a stub with two schemas:
//
//	sales: orders -> customers, order_lines -> orders
//	hr:    staff
func shop() *stubSource {
	s := newStub()
	s.schemas = []adapter.SchemaRow{{Schema: "sales"}, {Schema: "hr"}}
	s.tables = []adapter.TableRow{
		{Schema: "sales", Name: "customers", Type: "TABLE"},
		{Schema: "sales", Name: "orders", Type: "TABLE", Remarks: " customer orders "},
		{Schema: "sales", Name: "order_lines", Type: "TABLE"},
		{Schema: "sales", Name: "big_orders", Type: "VIEW", Definition: "SELECT * FROM orders"},
		{Schema: "hr", Name: "staff", Type: "TABLE"},
		{Schema: "archive", Name: "old_orders", Type: "TABLE"},
	}
	col := func(schemaName, table, name string, ord int) adapter.ColumnRow {
		return adapter.ColumnRow{Schema: schemaName, Table: table, Name: name, TypeName: "INTEGER", Ordinal: ord}
	}
	s.columns = []adapter.ColumnRow{
		col("sales", "customers", "id", 1),
		col("sales", "customers", "ssn", 2),
		col("sales", "orders", "customer_id", 2),
		col("sales", "orders", "id", 1),
		col("sales", "order_lines", "order_id", 1),
		col("sales", "order_lines", "line", 2),
		col("hr", "staff", "id", 1),
		col("archive", "old_orders", "id", 1),
	}
	s.indexes = []adapter.IndexRow{
		{Schema: "sales", Table: "order_lines", Name: "pk_lines", Column: "line", Ordinal: 2, Unique: true, Primary: true},
		{Schema: "sales", Table: "order_lines", Name: "pk_lines", Column: "order_id", Ordinal: 1, Unique: true, Primary: true},
	}
	fk := func(name, child, childCol, parent, parentCol string, seq int) adapter.ForeignKeyRow {
		return adapter.ForeignKeyRow{
			Name:     name,
			FKSchema: "sales", FKTable: child, FKColumn: childCol,
			PKSchema: "sales", PKTable: parent, PKColumn: parentCol,
			KeySeq: seq,
		}
	}
	s.foreignKeys = []adapter.ForeignKeyRow{
		fk("fk_orders_customers", "orders", "customer_id", "customers", "id", 1),
		fk("fk_lines_orders", "order_lines", "order_id", "orders", "id", 1),
		{Name: "fk_orders_archive", FKSchema: "sales", FKTable: "orders", FKColumn: "id", PKSchema: "archive", PKTable: "old_orders", PKColumn: "id", KeySeq: 1},
	}
	s.triggers = []adapter.TriggerRow{
		{Schema: "sales", Table: "orders", Name: "trg_audit", Event: "INSERT", Timing: "AFTER", Action: "INSERT INTO audit"},
		{Schema: "sales", Table: "orders", Name: "trg_audit", Event: "UPDATE", Timing: "AFTER", Action: "INSERT INTO audit"},
	}
	s.routines = []adapter.RoutineRow{
		{Schema: "sales", Name: "total", SpecificName: "total_1", Type: "FUNCTION", Definition: "RETURN 1"},
		{Schema: "sales", Name: "total", SpecificName: "total_2", Type: "FUNCTION"},
		{Schema: "hr", Name: "hire", Type: "PROCEDURE"},
	}
	s.routineColumns = []adapter.RoutineColumnRow{
		{Schema: "sales", RoutineName: "total", SpecificName: "total_1", Name: "order_id", Kind: "IN", Ordinal: 1},
		{Schema: "sales", RoutineName: "total", SpecificName: "total_2", Name: "customer_id", Kind: "IN", Ordinal: 1},
		{Schema: "sales", RoutineName: "total", SpecificName: "total_2", Name: "since", Kind: "IN", Ordinal: 2},
		{Schema: "hr", RoutineName: "hire", Name: "name", Kind: "1", Ordinal: 1},
	}
	s.sequences = []adapter.SequenceRow{{Schema: "sales", Name: "order_seq", Increment: 1}}
	s.synonyms = []adapter.SynonymRow{{Schema: "hr", Name: "orders", RefSchema: "sales", RefName: "orders"}}
	s.counts = map[string]int64{
		"sales.customers":   3,
		"sales.orders":      0,
		"sales.order_lines": 0,
		"hr.staff":          2,
	}
	return s
}
