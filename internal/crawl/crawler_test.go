package crawl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sadopc/dbcrawl/internal/adapter"
	"github.com/sadopc/dbcrawl/internal/inclusion"
	"github.com/sadopc/dbcrawl/internal/queries"
	"github.com/sadopc/dbcrawl/internal/schema"
)

func rule(include, exclude string) *inclusion.Rule {
	r := inclusion.MustNew(include, exclude)
	return &r
}

func tableNames(cat *schema.Catalog) string {
	var out []string
	for _, t := range cat.Tables() {
		out = append(out, t.FullName())
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func findTable(t *testing.T, cat *schema.Catalog, schemaName, name string) *schema.Table {
	t.Helper()
	sid, ok := cat.LookupSchema("", schemaName)
	if !ok {
		t.Fatalf("schema %s not found", schemaName)
	}
	id, ok := cat.LookupTable(sid, name)
	if !ok {
		t.Fatalf("table %s.%s not found", schemaName, name)
	}
	return cat.Table(id)
}

func TestRetrieveDefaults(t *testing.T) {
	src := shop()
	cat, sum, err := New(src, DefaultOptions()).Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}

	want := "hr.staff,sales.big_orders,sales.customers,sales.order_lines,sales.orders"
	if got := tableNames(cat); got != want {
		t.Errorf("tables = %s, want %s", got, want)
	}

	orders := findTable(t, cat, "sales", "orders")
	if orders.Remarks != "customer orders" {
		t.Errorf("Remarks = %q, want trimmed", orders.Remarks)
	}
	if len(orders.Columns) != 2 || orders.Columns[0].Name != "id" || orders.Columns[0].Ordinal != 0 {
		t.Errorf("orders columns not in ordinal order: %+v", orders.Columns)
	}
	if def := findTable(t, cat, "sales", "big_orders").Definition; def != "" {
		t.Errorf("view definition at standard info level = %q, want empty", def)
	}

	lines := findTable(t, cat, "sales", "order_lines")
	if len(lines.Indexes) != 1 || strings.Join(lines.Indexes[0].Columns, ",") != "order_id,line" {
		t.Errorf("indexes = %+v, want pk_lines(order_id,line)", lines.Indexes)
	}
	if !lines.Column("line").PartOfPK {
		t.Error("primary index columns must be marked part of the primary key")
	}

	// The key to archive.old_orders has no parent in the catalog.
	if n := len(cat.ForeignKeys()); n != 2 {
		t.Errorf("len(ForeignKeys()) = %d, want 2", n)
	}

	if n := len(cat.Routines()); n != 0 {
		t.Errorf("routines are excluded by default, got %d", n)
	}
	if src.calls["Routines"] != 0 || src.calls["Triggers"] != 0 || src.calls["Synonyms"] != 0 {
		t.Errorf("calls = %v, want no routine, trigger or synonym calls", src.calls)
	}
	if src.calls["Tables"] != 2 || src.calls["Columns"] != 2 {
		t.Errorf("calls = %v, want one tables and one columns call per schema", src.calls)
	}

	e, ok := sum.Entry(CategoryTables)
	if !ok || e.Retrieved != 5 || e.Rows != 5 || e.Calls != 2 || e.Strategy != Metadata {
		t.Errorf("tables entry = %+v", e)
	}
	if e, _ := sum.Entry(CategoryRoutines); !e.Skipped {
		t.Errorf("routines entry = %+v, want skipped", e)
	}
}

func TestExcludeAllShortCircuits(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	src := shop()
	all := inclusion.ExcludeAll()
	opts := DefaultOptions()
	opts.Rules.Tables = &all
	opts.InfoLevel = InfoDetailed

	cat, _, err := New(src, opts, WithLogger(zap.New(core))).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n := len(cat.Tables()); n != 0 {
		t.Errorf("len(Tables()) = %d, want 0", n)
	}
	if src.total() != 1 {
		t.Errorf("calls = %v, want only the schemas call", src.calls)
	}
	if logs.FilterMessage("not retrieving tables, since this was not requested").Len() != 1 {
		t.Error("expected a log line for the skipped tables")
	}
	if logs.FilterMessage("not retrieving foreign keys, since this was not requested").Len() != 1 {
		t.Error("expected a log line for the skipped foreign keys")
	}
}

func TestConfigurationErrorBeforeRetrieval(t *testing.T) {
	tests := []struct {
		name string
		reg  *queries.Registry
	}{
		{"no query registered", queries.New("empty")},
		{"no registry", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := shop()
			opts := DefaultOptions()
			opts.Strategies = Strategies{CategoryColumns: DataDictionaryAll}

			_, _, err := New(src, opts, WithQueries(tt.reg)).Crawl(context.Background())
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Crawl() error = %v, want ConfigurationError", err)
			}
			if cfgErr.Category != CategoryColumns {
				t.Errorf("Category = %s, want columns", cfgErr.Category)
			}
			if src.total() != 0 {
				t.Errorf("calls = %v, want none", src.calls)
			}
		})
	}
}

func TestDataDictionaryNeedsDatabase(t *testing.T) {
	reg := queries.New("test")
	reg.Register(queries.Tables, "SELECT 1")
	opts := DefaultOptions()
	opts.Strategies = Strategies{CategoryTables: DataDictionaryAll}

	_, _, err := New(shop(), opts, WithQueries(reg)).Retrieve(context.Background())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Retrieve() error = %v, want ConfigurationError", err)
	}
}

func TestDisabledCategoryIsNotValidated(t *testing.T) {
	opts := DefaultOptions()
	// Synonyms are off at the standard info level, so the missing query
	// does not matter.
	opts.Strategies = Strategies{CategorySynonyms: DataDictionaryAll}
	if _, _, err := New(shop(), opts).Retrieve(context.Background()); err != nil {
		t.Errorf("Retrieve() error = %v", err)
	}
}

func TestUnsupportedCategory(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)
	src := shop()
	src.fail["Synonyms"] = fmt.Errorf("synonyms: %w", adapter.ErrUnsupported)

	opts := DefaultOptions()
	opts.InfoLevel = InfoDetailed
	all := inclusion.IncludeAll()
	opts.Rules.Synonyms = &all

	cat, sum, err := New(src, opts, WithLogger(log)).Crawl(context.Background())
	if err != nil {
		t.Fatalf("an unsupported capability must not fail the crawl: %v", err)
	}
	if cat == nil {
		t.Fatal("Crawl() returned no catalog")
	}
	e, _ := sum.Entry(CategorySynonyms)
	if !e.Unsupported || e.Retrieved != 0 {
		t.Errorf("synonyms entry = %+v", e)
	}
	if logs.FilterMessage("metadata not supported").Len() != 1 {
		t.Error("expected a warning for the unsupported category")
	}

	sum.Log(log)
	if logs.FilterMessage("synonyms: 0 retrieved").Len() != 1 {
		t.Error(`summary must log "synonyms: 0 retrieved"`)
	}
	if logs.FilterMessage("tables: 5 retrieved").Len() != 1 {
		t.Error(`summary must log "tables: 5 retrieved"`)
	}
}

func TestRetrievalErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	src := shop()
	src.fail["Columns"] = boom

	cat, _, err := New(src, DefaultOptions()).Crawl(context.Background())
	if cat != nil {
		t.Error("no catalog may be returned after a retrieval error")
	}
	var rerr *RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("Crawl() error = %v, want RetrievalError", err)
	}
	if rerr.Category != CategoryColumns || rerr.Strategy != Metadata {
		t.Errorf("RetrievalError = %+v", rerr)
	}
	if !errors.Is(err, boom) {
		t.Error("RetrievalError must wrap the cause")
	}
	if src.calls["Indexes"] != 0 {
		t.Error("retrieval must stop at the failing category")
	}
}

func TestMetadataAllMatchesMetadata(t *testing.T) {
	perSchema, _, err := New(shop(), DefaultOptions()).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	src := shop()
	opts := DefaultOptions()
	opts.Strategies = Strategies{
		CategoryTables:      MetadataAll,
		CategoryColumns:     MetadataAll,
		CategoryIndexes:     MetadataAll,
		CategoryForeignKeys: MetadataAll,
	}
	whole, sum, err := New(src, opts).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if got, want := tableNames(whole), tableNames(perSchema); got != want {
		t.Errorf("metadata_all tables = %s, want %s", got, want)
	}
	if got, want := whole.Counts(), perSchema.Counts(); got != want {
		t.Errorf("metadata_all counts = %+v, want %+v", got, want)
	}
	if src.calls["Tables"] != 1 || src.calls["Columns"] != 1 {
		t.Errorf("calls = %v, want one call per category", src.calls)
	}
	if e, _ := sum.Entry(CategoryColumns); e.Strategy != MetadataAll || e.Calls != 1 {
		t.Errorf("columns entry = %+v", e)
	}
}

func TestRoutines(t *testing.T) {
	src := shop()
	opts := DefaultOptions()
	opts.Rules.Routines = rule(`hr\..*`, "")

	cat, _, err := New(src, opts).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Routines()) != 1 {
		t.Fatalf("routines = %v, want hr.hire only", cat.Routines())
	}
	hire := cat.Routines()[0]
	if len(hire.Columns) != 1 || hire.Columns[0].Kind != schema.ParamIn {
		t.Errorf("hire columns = %+v", hire.Columns)
	}
	// Only schemas that still hold routines are asked for their columns.
	if src.calls["RoutineColumns"] != 1 {
		t.Errorf("RoutineColumns calls = %d, want 1", src.calls["RoutineColumns"])
	}
}

func TestRoutineOverloads(t *testing.T) {
	opts := DefaultOptions()
	opts.InfoLevel = InfoMaximum
	opts.Rules.Routines = rule(`sales\.total`, "")

	cat, _, err := New(shop(), opts).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sid, _ := cat.LookupSchema("", "sales")
	overloads := cat.RoutinesNamed(sid, "total")
	if len(overloads) != 2 {
		t.Fatalf("len(RoutinesNamed) = %d, want 2", len(overloads))
	}
	for _, r := range overloads {
		var names []string
		for _, c := range r.Columns {
			names = append(names, c.Name)
		}
		got := strings.Join(names, ",")
		switch r.SpecificName {
		case "total_1":
			if got != "order_id" {
				t.Errorf("total_1 columns = %s, want order_id", got)
			}
			if r.Definition != "RETURN 1" {
				t.Errorf("Definition at maximum info level = %q", r.Definition)
			}
		case "total_2":
			if got != "customer_id,since" {
				t.Errorf("total_2 columns = %s, want customer_id,since", got)
			}
		}
	}
}

func TestDetailedLevel(t *testing.T) {
	src := shop()
	opts := DefaultOptions()
	opts.InfoLevel = InfoDetailed
	all := inclusion.IncludeAll()
	opts.Rules.Sequences = &all

	cat, _, err := New(src, opts).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	orders := findTable(t, cat, "sales", "orders")
	if len(orders.Triggers) != 1 || orders.Triggers[0].Event != "INSERT OR UPDATE" {
		t.Errorf("triggers = %+v, want one trigger on INSERT OR UPDATE", orders.Triggers)
	}
	if len(cat.Sequences()) != 1 {
		t.Errorf("len(Sequences()) = %d, want 1", len(cat.Sequences()))
	}
	// Synonyms keep their default stance.
	if src.calls["Synonyms"] != 0 {
		t.Errorf("Synonyms calls = %d, want 0", src.calls["Synonyms"])
	}
}

func TestMinimumLevel(t *testing.T) {
	src := shop()
	opts := DefaultOptions()
	opts.InfoLevel = InfoMinimum
	// A rule does not turn a category back on.
	opts.Rules.Columns = rule(".*", "")

	cat, _, err := New(src, opts).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if src.calls["Columns"] != 0 || src.calls["ForeignKeys"] != 0 {
		t.Errorf("calls = %v", src.calls)
	}
	if n := cat.Counts().Columns; n != 0 {
		t.Errorf("columns = %d, want 0", n)
	}
}

func TestDepthDefersTableRule(t *testing.T) {
	opts := DefaultOptions()
	opts.Rules.Tables = rule(`sales\.orders`, "")

	cat, _, err := New(shop(), opts).Crawl(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := tableNames(cat); got != "sales.orders" {
		t.Errorf("tables = %s, want sales.orders", got)
	}

	opts.ParentDepth = 1
	opts.ChildDepth = 1
	cat, _, err = New(shop(), opts).Crawl(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := tableNames(cat); got != "sales.customers,sales.order_lines,sales.orders" {
		t.Errorf("tables = %s, want orders with its parent and child", got)
	}
	if n := len(cat.ForeignKeys()); n != 2 {
		t.Errorf("len(ForeignKeys()) = %d, want 2", n)
	}
}

func TestNoEmptyTables(t *testing.T) {
	src := shop()
	opts := DefaultOptions()
	opts.NoEmptyTables = true

	cat, sum, err := New(src, opts).Crawl(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := tableNames(cat); got != "hr.staff,sales.big_orders,sales.customers" {
		t.Errorf("tables = %s", got)
	}
	// Views are not counted.
	if src.calls["CountRows"] != 4 {
		t.Errorf("CountRows calls = %d, want 4", src.calls["CountRows"])
	}
	if n := len(cat.ForeignKeys()); n != 0 {
		t.Errorf("len(ForeignKeys()) = %d, want 0", n)
	}
	if sum.Reduced.Tables != 2 {
		t.Errorf("Reduced.Tables = %d, want 2", sum.Reduced.Tables)
	}
}

func TestRowCountUnsupported(t *testing.T) {
	src := shop()
	src.fail["CountRows"] = adapter.ErrUnsupported
	opts := DefaultOptions()
	opts.LoadRowCounts = true

	cat, sum, err := New(src, opts).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if e, _ := sum.Entry(categoryRowCounts); !e.Unsupported {
		t.Errorf("row counts entry = %+v, want unsupported", e)
	}
	if _, ok := findTable(t, cat, "hr", "staff").RowCount(); ok {
		t.Error("row count must stay unknown")
	}
}

func TestCrawlAppliesGrep(t *testing.T) {
	opts := DefaultOptions()
	opts.Grep.Columns = rule(`.*\.ssn`, "")

	cat, sum, err := New(shop(), opts).Crawl(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := tableNames(cat); got != "sales.customers" {
		t.Errorf("tables = %s, want sales.customers", got)
	}
	if sum.Grep.Tables != 4 {
		t.Errorf("Grep.Tables = %d, want 4", sum.Grep.Tables)
	}
}

func TestSchemaRuleAtRetrieval(t *testing.T) {
	src := shop()
	opts := DefaultOptions()
	opts.Rules.Schemas = rule("hr", "")

	cat, _, err := New(src, opts).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := tableNames(cat); got != "hr.staff" {
		t.Errorf("tables = %s, want hr.staff", got)
	}
	if src.calls["Tables"] != 1 {
		t.Errorf("Tables calls = %d, want 1", src.calls["Tables"])
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := New(shop(), DefaultOptions()).Crawl(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Crawl() error = %v, want context.Canceled", err)
	}
}

func TestApplyAfterRetrieve(t *testing.T) {
	opts := DefaultOptions()
	opts.Rules.Tables = rule(`sales\.orders`, "")
	opts.ParentDepth = 1

	cat, _, err := New(shop(), opts).Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n := len(cat.Tables()); n < 4 {
		t.Fatalf("retrieved %d tables, want the unreduced catalog", n)
	}

	reduced, _, err := Apply(cat, opts, nil)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got := tableNames(cat); got != "sales.customers,sales.orders" {
		t.Errorf("tables = %s, want orders and its parent", got)
	}
	if reduced.Tables == 0 {
		t.Error("Reduced.Tables = 0, want removed tables counted")
	}
}
