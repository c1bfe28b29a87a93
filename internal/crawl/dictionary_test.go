package crawl

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/sadopc/dbcrawl/internal/queries"
)

const dictTables = "SELECT * FROM dict_tables WHERE (:schema = '' OR table_schem = :schema)"

func mockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func TestDataDictionaryTables(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("FROM dict_tables").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_cat", "table_schem", "table_name", "table_type", "remarks", "definition", "owner_id",
		}).
			AddRow("", "sales", "customers", "TABLE", "people who buy ", "", 7).
			AddRow("", "archive", "old_orders", "TABLE", "", "", 1))

	reg := queries.New("test")
	reg.Register(queries.Tables, dictTables)

	src := shop()
	opts := DefaultOptions()
	opts.Strategies = Strategies{CategoryTables: DataDictionaryAll}

	cat, sum, err := New(src, opts, WithDB(db), WithQueries(reg)).Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}

	if src.calls["Tables"] != 0 {
		t.Errorf("Tables calls = %d, want 0 with the data dictionary strategy", src.calls["Tables"])
	}
	// The archive row is outside the known schemas.
	if got := tableNames(cat); got != "sales.customers" {
		t.Errorf("tables = %s, want sales.customers", got)
	}
	customers := findTable(t, cat, "sales", "customers")
	if customers.Remarks != "people who buy" {
		t.Errorf("Remarks = %q", customers.Remarks)
	}
	// Post-processing is shared: columns still come from the metadata calls.
	if len(customers.Columns) != 2 {
		t.Errorf("len(Columns) = %d, want 2", len(customers.Columns))
	}
	if src.calls["Columns"] != 1 {
		t.Errorf("Columns calls = %d, want 1 (only sales holds tables)", src.calls["Columns"])
	}

	e, _ := sum.Entry(CategoryTables)
	if e.Strategy != DataDictionaryAll || e.Rows != 2 || e.Retrieved != 1 || e.Calls != 1 {
		t.Errorf("tables entry = %+v", e)
	}
}

func TestDataDictionaryError(t *testing.T) {
	db, mock := mockDB(t)
	denied := errors.New("permission denied")
	mock.ExpectQuery("FROM dict_tables").WillReturnError(denied)

	reg := queries.New("test")
	reg.Register(queries.Tables, dictTables)
	opts := DefaultOptions()
	opts.Strategies = Strategies{CategoryTables: DataDictionaryAll}

	cat, _, err := New(shop(), opts, WithDB(db), WithQueries(reg)).Crawl(context.Background())
	if cat != nil {
		t.Error("no catalog may be returned after a retrieval error")
	}
	var rerr *RetrievalError
	if !errors.As(err, &rerr) || rerr.Strategy != DataDictionaryAll || rerr.Category != CategoryTables {
		t.Fatalf("Crawl() error = %v, want a data dictionary RetrievalError for tables", err)
	}
	if !errors.Is(err, denied) {
		t.Error("RetrievalError must wrap the driver error")
	}
}
