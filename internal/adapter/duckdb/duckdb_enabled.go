//go:build duckdb

package duckdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/sadopc/dbcrawl/internal/adapter"
)

func init() {
	sqlx.BindDriver("duckdb", sqlx.QUESTION)
	adapter.Register(&duckdbAdapter{})
}

type duckdbAdapter struct{}

func (a *duckdbAdapter) Name() string     { return "duckdb" }
func (a *duckdbAdapter) DefaultPort() int { return 0 }

func (a *duckdbAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	dsn = strings.TrimPrefix(dsn, "duckdb://")
	if dsn == ":memory:" {
		dsn = ""
	}

	db, err := sqlx.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}

	var name string
	if err := db.GetContext(ctx, &name, "SELECT current_database()"); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: current database: %w", err)
	}
	return &duckdbConn{db: db, dbName: name}, nil
}

// duckdbConn implements adapter.Connection. Every attached database is a
// catalog; metadata comes from the duckdb_* table functions.
type duckdbConn struct {
	db     *sqlx.DB
	dbName string
}

func (c *duckdbConn) DatabaseName() string { return c.dbName }
func (c *duckdbConn) AdapterName() string  { return "duckdb" }
func (c *duckdbConn) DB() *sqlx.DB         { return c.db }

func (c *duckdbConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *duckdbConn) Close() error {
	return c.db.Close()
}

// inScope restricts alias.database_name, alias.schema_name and a name
// column; scopeArgs supplies the matching arguments.
func inScope(alias, nameColumn string) string {
	return fmt.Sprintf(
		"(? = '' OR %[1]s.database_name = ?) AND (? = '' OR %[1]s.schema_name = ?) AND %[2]s LIKE ?",
		alias, nameColumn)
}

func scopeArgs(scope adapter.Scope, pattern string) []any {
	return []any{scope.Catalog, scope.Catalog, scope.Schema, scope.Schema, adapter.LikePattern(pattern)}
}

func selectRows[R any](ctx context.Context, c *duckdbConn, what, q string, args ...any) ([]R, error) {
	var out []R
	if err := c.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("duckdb: %s: %w", what, err)
	}
	return out, nil
}

func (c *duckdbConn) Schemas(ctx context.Context) ([]adapter.SchemaRow, error) {
	return selectRows[adapter.SchemaRow](ctx, c, "schemas", `
		SELECT database_name AS table_catalog, schema_name AS table_schem
		FROM duckdb_schemas()
		WHERE database_name NOT IN ('system', 'temp')
		  AND schema_name NOT IN ('information_schema', 'pg_catalog')
		ORDER BY database_name, schema_name`)
}

func (c *duckdbConn) Tables(ctx context.Context, scope adapter.Scope, namePattern string, types []string) ([]adapter.TableRow, error) {
	args := append(scopeArgs(scope, namePattern), scopeArgs(scope, namePattern)...)
	rows, err := selectRows[adapter.TableRow](ctx, c, "tables", `
		SELECT t.database_name AS table_cat, t.schema_name AS table_schem, t.table_name,
		       CASE WHEN t.temporary THEN 'GLOBAL TEMPORARY' ELSE 'TABLE' END AS table_type,
		       COALESCE(t.comment, '') AS remarks, '' AS definition
		FROM duckdb_tables() t
		WHERE NOT t.internal AND `+inScope("t", "t.table_name")+`
		UNION ALL
		SELECT v.database_name, v.schema_name, v.view_name, 'VIEW',
		       COALESCE(v.comment, ''), COALESCE(v.sql, '')
		FROM duckdb_views() v
		WHERE NOT v.internal AND `+inScope("v", "v.view_name")+`
		ORDER BY 1, 2, 3`, args...)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		if adapter.HasType(types, r.Type) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *duckdbConn) Columns(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.ColumnRow, error) {
	return selectRows[adapter.ColumnRow](ctx, c, "columns", `
		SELECT col.database_name AS table_cat, col.schema_name AS table_schem, col.table_name,
		       col.column_name, col.data_type AS type_name,
		       CAST(COALESCE(col.character_maximum_length, col.numeric_precision, 0) AS INTEGER) AS column_size,
		       CAST(COALESCE(col.numeric_scale, 0) AS INTEGER) AS decimal_digits,
		       col.is_nullable,
		       COALESCE(col.column_default, '') AS column_def,
		       COALESCE(col.comment, '') AS remarks,
		       CAST(col.column_index AS INTEGER) AS ordinal_position,
		       EXISTS (
		         SELECT 1 FROM duckdb_constraints() k
		         WHERE k.table_oid = col.table_oid
		           AND k.constraint_type = 'PRIMARY KEY'
		           AND list_contains(k.constraint_column_names, col.column_name)
		       ) AS is_pk,
		       COALESCE(col.column_default, '') LIKE 'nextval(%' AS is_autoincrement,
		       false AS is_generatedcolumn
		FROM duckdb_columns() col
		WHERE NOT col.internal AND `+inScope("col", "col.table_name")+`
		ORDER BY 1, 2, 3, col.column_index`, scopeArgs(scope, tablePattern)...)
}

// Indexes reports primary key and unique constraints column by column.
// Explicit indexes only expose their expression list, which is reported as
// a single column.
func (c *duckdbConn) Indexes(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.IndexRow, error) {
	args := append(scopeArgs(scope, tablePattern), scopeArgs(scope, tablePattern)...)
	return selectRows[adapter.IndexRow](ctx, c, "indexes", `
		SELECT k.database_name AS table_cat, k.schema_name AS table_schem, k.table_name,
		       k.constraint_name AS index_name,
		       unnest(k.constraint_column_names) AS column_name,
		       CAST(generate_subscripts(k.constraint_column_names, 1) AS INTEGER) AS ordinal_position,
		       true AS is_unique,
		       k.constraint_type = 'PRIMARY KEY' AS is_primary
		FROM duckdb_constraints() k
		WHERE k.constraint_type IN ('PRIMARY KEY', 'UNIQUE') AND `+inScope("k", "k.table_name")+`
		UNION ALL
		SELECT i.database_name, i.schema_name, i.table_name, i.index_name,
		       COALESCE(i.expressions, ''), 1, i.is_unique, i.is_primary
		FROM duckdb_indexes() i
		WHERE `+inScope("i", "i.table_name")+`
		ORDER BY 1, 2, 3, 4, 6`, args...)
}

// ForeignKeys reports NO ACTION rules; DuckDB supports no others.
func (c *duckdbConn) ForeignKeys(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.ForeignKeyRow, error) {
	return selectRows[adapter.ForeignKeyRow](ctx, c, "foreign keys", `
		SELECT k.database_name AS pktable_cat, k.schema_name AS pktable_schem,
		       k.referenced_table AS pktable_name,
		       unnest(k.referenced_column_names) AS pkcolumn_name,
		       k.database_name AS fktable_cat, k.schema_name AS fktable_schem, k.table_name AS fktable_name,
		       unnest(k.constraint_column_names) AS fkcolumn_name,
		       CAST(generate_subscripts(k.constraint_column_names, 1) AS INTEGER) AS key_seq,
		       'NO ACTION' AS update_rule, 'NO ACTION' AS delete_rule,
		       k.constraint_name AS fk_name
		FROM duckdb_constraints() k
		WHERE k.constraint_type = 'FOREIGN KEY' AND `+inScope("k", "k.table_name")+`
		ORDER BY fktable_schem, fktable_name, fk_name, key_seq`, scopeArgs(scope, tablePattern)...)
}

func (c *duckdbConn) Triggers(context.Context, adapter.Scope, string) ([]adapter.TriggerRow, error) {
	return nil, fmt.Errorf("duckdb: triggers: %w", adapter.ErrUnsupported)
}

// Routines lists user defined macros. Overloads share a name, so the
// specific name carries the function oid.
func (c *duckdbConn) Routines(ctx context.Context, scope adapter.Scope, namePattern string) ([]adapter.RoutineRow, error) {
	return selectRows[adapter.RoutineRow](ctx, c, "routines", `
		SELECT f.database_name AS routine_cat, f.schema_name AS routine_schem, f.function_name AS routine_name,
		       f.function_name || '_' || CAST(f.function_oid AS VARCHAR) AS specific_name,
		       'FUNCTION' AS routine_type,
		       CASE f.function_type WHEN 'table_macro' THEN 'TABLE' ELSE COALESCE(f.return_type, '') END AS return_type,
		       COALESCE(f.description, '') AS remarks,
		       COALESCE(f.macro_definition, '') AS definition
		FROM duckdb_functions() f
		WHERE NOT f.internal AND f.function_type IN ('macro', 'table_macro')
		  AND `+inScope("f", "f.function_name")+`
		ORDER BY 1, 2, 3, 4`, scopeArgs(scope, namePattern)...)
}

func (c *duckdbConn) RoutineColumns(ctx context.Context, scope adapter.Scope, routinePattern string) ([]adapter.RoutineColumnRow, error) {
	return selectRows[adapter.RoutineColumnRow](ctx, c, "routine columns", `
		SELECT routine_cat, routine_schem, routine_name, specific_name,
		       COALESCE(p, '') AS column_name, 'IN' AS column_type,
		       COALESCE(pt, '') AS type_name,
		       0 AS length, 0 AS "precision", true AS is_nullable, '' AS remarks,
		       CAST(pos AS INTEGER) AS ordinal_position
		FROM (
		  SELECT f.database_name AS routine_cat, f.schema_name AS routine_schem, f.function_name AS routine_name,
		         f.function_name || '_' || CAST(f.function_oid AS VARCHAR) AS specific_name,
		         unnest(f.parameters) AS p,
		         unnest(f.parameter_types) AS pt,
		         generate_subscripts(f.parameters, 1) AS pos
		  FROM duckdb_functions() f
		  WHERE NOT f.internal AND f.function_type IN ('macro', 'table_macro')
		    AND `+inScope("f", "f.function_name")+`
		)
		ORDER BY 1, 2, 4, pos`, scopeArgs(scope, routinePattern)...)
}

func (c *duckdbConn) Sequences(ctx context.Context, scope adapter.Scope, namePattern string) ([]adapter.SequenceRow, error) {
	return selectRows[adapter.SequenceRow](ctx, c, "sequences", `
		SELECT s.database_name AS sequence_catalog, s.schema_name AS sequence_schema, s.sequence_name,
		       s.increment_by AS increment,
		       CAST(s.min_value AS VARCHAR) AS minimum_value,
		       CAST(s.max_value AS VARCHAR) AS maximum_value,
		       s.cycle AS cycle_option,
		       COALESCE(s.comment, '') AS remarks
		FROM duckdb_sequences() s
		WHERE `+inScope("s", "s.sequence_name")+`
		ORDER BY 1, 2, 3`, scopeArgs(scope, namePattern)...)
}

func (c *duckdbConn) Synonyms(context.Context, adapter.Scope, string) ([]adapter.SynonymRow, error) {
	return nil, fmt.Errorf("duckdb: synonyms: %w", adapter.ErrUnsupported)
}

func (c *duckdbConn) CountRows(ctx context.Context, catalog, schemaName, table string) (int64, error) {
	parts := []string{adapter.QuoteIdent(table)}
	if schemaName != "" {
		parts = append([]string{adapter.QuoteIdent(schemaName)}, parts...)
		if catalog != "" {
			parts = append([]string{adapter.QuoteIdent(catalog)}, parts...)
		}
	}
	var n int64
	if err := c.db.GetContext(ctx, &n, "SELECT count(*) FROM "+strings.Join(parts, ".")); err != nil {
		return 0, fmt.Errorf("duckdb: count %s: %w", table, err)
	}
	return n, nil
}
