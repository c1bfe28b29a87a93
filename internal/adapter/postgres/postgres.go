package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/sadopc/dbcrawl/internal/adapter"
)

func init() {
	adapter.Register(&postgresAdapter{})
}

// postgresAdapter implements adapter.Adapter for PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string     { return "postgres" }
func (a *postgresAdapter) DefaultPort() int { return 5432 }

func (a *postgresAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	return &pgConn{
		pool:   pool,
		db:     sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"),
		dbName: pool.Config().ConnConfig.Database,
	}, nil
}

// pgConn implements adapter.Connection for PostgreSQL. Metadata calls go
// through the pgx pool; db shares the pool for data dictionary queries.
type pgConn struct {
	pool   *pgxpool.Pool
	db     *sqlx.DB
	dbName string
}

func (c *pgConn) DatabaseName() string { return c.dbName }
func (c *pgConn) AdapterName() string  { return "postgres" }
func (c *pgConn) DB() *sqlx.DB         { return c.db }

func (c *pgConn) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *pgConn) Close() error {
	err := c.db.Close()
	c.pool.Close()
	return err
}

// collect runs a metadata query and maps each row onto R by its db tags.
func collect[R any](ctx context.Context, pool *pgxpool.Pool, what, query string, args ...any) ([]R, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres %s: %w", what, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[R])
	if err != nil {
		return nil, fmt.Errorf("postgres %s scan: %w", what, err)
	}
	return out, nil
}

// inCatalog reports whether a scope can hold anything in the connected
// database. PostgreSQL cannot look into other databases.
func (c *pgConn) inCatalog(scope adapter.Scope) bool {
	return scope.Catalog == "" || scope.Catalog == c.dbName
}

const systemSchemas = `('pg_catalog', 'information_schema')`

func (c *pgConn) Schemas(ctx context.Context) ([]adapter.SchemaRow, error) {
	return collect[adapter.SchemaRow](ctx, c.pool, "schemas", `
		SELECT current_database() AS table_catalog, nspname AS table_schem
		FROM pg_catalog.pg_namespace
		WHERE nspname NOT IN `+systemSchemas+`
		  AND nspname NOT LIKE 'pg\_toast%'
		  AND nspname NOT LIKE 'pg\_temp\_%'
		ORDER BY nspname`)
}

func (c *pgConn) Tables(ctx context.Context, scope adapter.Scope, namePattern string, types []string) ([]adapter.TableRow, error) {
	if !c.inCatalog(scope) {
		return nil, nil
	}
	rows, err := collect[adapter.TableRow](ctx, c.pool, "tables", `
		SELECT current_database() AS table_cat, n.nspname AS table_schem, c.relname AS table_name,
		       CASE
		         WHEN c.relpersistence = 't' THEN 'GLOBAL TEMPORARY'
		         WHEN c.relkind IN ('r', 'p') THEN 'TABLE'
		         WHEN c.relkind = 'v' THEN 'VIEW'
		         WHEN c.relkind = 'm' THEN 'MATERIALIZED VIEW'
		         ELSE 'FOREIGN TABLE'
		       END AS table_type,
		       COALESCE(obj_description(c.oid, 'pg_class'), '') AS remarks,
		       CASE WHEN c.relkind IN ('v', 'm') THEN COALESCE(pg_get_viewdef(c.oid, true), '') ELSE '' END AS definition
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p', 'v', 'm', 'f')
		  AND NOT c.relispartition
		  AND n.nspname NOT IN `+systemSchemas+`
		  AND ($1 = '' OR n.nspname = $1)
		  AND c.relname LIKE $2
		ORDER BY n.nspname, c.relname`,
		scope.Schema, adapter.LikePattern(namePattern))
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

func (c *pgConn) Columns(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.ColumnRow, error) {
	if !c.inCatalog(scope) {
		return nil, nil
	}
	return collect[adapter.ColumnRow](ctx, c.pool, "columns", `
		SELECT current_database() AS table_cat, n.nspname AS table_schem, c.relname AS table_name,
		       a.attname AS column_name,
		       pg_catalog.format_type(a.atttypid, NULL) AS type_name,
		       CASE
		         WHEN t.typname IN ('varchar', 'bpchar') AND a.atttypmod > 4 THEN a.atttypmod - 4
		         WHEN t.typname = 'numeric' AND a.atttypmod > 4 THEN ((a.atttypmod - 4) >> 16) & 65535
		         ELSE 0
		       END AS column_size,
		       CASE WHEN t.typname = 'numeric' AND a.atttypmod > 4 THEN (a.atttypmod - 4) & 65535 ELSE 0 END AS decimal_digits,
		       NOT a.attnotnull AS is_nullable,
		       COALESCE(pg_get_expr(d.adbin, d.adrelid), '') AS column_def,
		       COALESCE(col_description(c.oid, a.attnum), '') AS remarks,
		       CAST(a.attnum AS int) AS ordinal_position,
		       COALESCE(a.attnum = ANY(pk.conkey), false) AS is_pk,
		       (a.attidentity <> '' OR COALESCE(pg_get_expr(d.adbin, d.adrelid), '') LIKE 'nextval(%') AS is_autoincrement,
		       a.attgenerated <> '' AS is_generatedcolumn
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
		LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		LEFT JOIN pg_catalog.pg_constraint pk ON pk.conrelid = c.oid AND pk.contype = 'p'
		WHERE a.attnum > 0 AND NOT a.attisdropped
		  AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
		  AND NOT c.relispartition
		  AND n.nspname NOT IN `+systemSchemas+`
		  AND ($1 = '' OR n.nspname = $1)
		  AND c.relname LIKE $2
		ORDER BY n.nspname, c.relname, a.attnum`,
		scope.Schema, adapter.LikePattern(tablePattern))
}

func (c *pgConn) Indexes(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.IndexRow, error) {
	if !c.inCatalog(scope) {
		return nil, nil
	}
	// Expression index columns have no attribute; their expression stands in.
	return collect[adapter.IndexRow](ctx, c.pool, "indexes", `
		SELECT current_database() AS table_cat, n.nspname AS table_schem, t.relname AS table_name,
		       i.relname AS index_name,
		       COALESCE(a.attname, pg_get_indexdef(ix.indexrelid, CAST(k.ord AS int), true)) AS column_name,
		       CAST(k.ord AS int) AS ordinal_position,
		       ix.indisunique AS is_unique, ix.indisprimary AS is_primary
		FROM pg_catalog.pg_index ix
		JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
		LEFT JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum AND k.attnum > 0
		WHERE n.nspname NOT IN `+systemSchemas+`
		  AND ($1 = '' OR n.nspname = $1)
		  AND t.relname LIKE $2
		ORDER BY n.nspname, t.relname, i.relname, k.ord`,
		scope.Schema, adapter.LikePattern(tablePattern))
}

const ruleCase = `CASE %s WHEN 'c' THEN 'CASCADE' WHEN 'n' THEN 'SET NULL' WHEN 'd' THEN 'SET DEFAULT' WHEN 'r' THEN 'RESTRICT' ELSE 'NO ACTION' END`

func (c *pgConn) ForeignKeys(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.ForeignKeyRow, error) {
	if !c.inCatalog(scope) {
		return nil, nil
	}
	return collect[adapter.ForeignKeyRow](ctx, c.pool, "foreign keys", `
		SELECT current_database() AS pktable_cat, pn.nspname AS pktable_schem, pc.relname AS pktable_name,
		       pa.attname AS pkcolumn_name,
		       current_database() AS fktable_cat, fn.nspname AS fktable_schem, fc.relname AS fktable_name,
		       fa.attname AS fkcolumn_name,
		       CAST(k.ord AS int) AS key_seq,
		       `+fmt.Sprintf(ruleCase, "con.confupdtype")+` AS update_rule,
		       `+fmt.Sprintf(ruleCase, "con.confdeltype")+` AS delete_rule,
		       con.conname AS fk_name
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class fc ON fc.oid = con.conrelid
		JOIN pg_catalog.pg_namespace fn ON fn.oid = fc.relnamespace
		JOIN pg_catalog.pg_class pc ON pc.oid = con.confrelid
		JOIN pg_catalog.pg_namespace pn ON pn.oid = pc.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(fk_attnum, pk_attnum, ord)
		JOIN pg_catalog.pg_attribute fa ON fa.attrelid = con.conrelid AND fa.attnum = k.fk_attnum
		JOIN pg_catalog.pg_attribute pa ON pa.attrelid = con.confrelid AND pa.attnum = k.pk_attnum
		WHERE con.contype = 'f'
		  AND ($1 = '' OR fn.nspname = $1)
		  AND fc.relname LIKE $2
		ORDER BY fn.nspname, fc.relname, con.conname, k.ord`,
		scope.Schema, adapter.LikePattern(tablePattern))
}

// Triggers returns one row per trigger event; the crawler merges them.
func (c *pgConn) Triggers(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.TriggerRow, error) {
	if !c.inCatalog(scope) {
		return nil, nil
	}
	return collect[adapter.TriggerRow](ctx, c.pool, "triggers", `
		SELECT CAST(trigger_catalog AS text) AS trigger_catalog,
		       CAST(trigger_schema AS text) AS trigger_schema,
		       CAST(event_object_table AS text) AS event_object_table,
		       CAST(trigger_name AS text) AS trigger_name,
		       CAST(event_manipulation AS text) AS event_manipulation,
		       CAST(action_timing AS text) AS action_timing,
		       CAST(action_orientation AS text) AS action_orientation,
		       CAST(action_statement AS text) AS action_statement
		FROM information_schema.triggers
		WHERE ($1 = '' OR trigger_schema = $1)
		  AND event_object_table LIKE $2
		ORDER BY trigger_schema, event_object_table, trigger_name, event_manipulation`,
		scope.Schema, adapter.LikePattern(tablePattern))
}

// Routines reports aggregate and window functions as functions. Specific
// names follow information_schema: name_oid.
func (c *pgConn) Routines(ctx context.Context, scope adapter.Scope, namePattern string) ([]adapter.RoutineRow, error) {
	if !c.inCatalog(scope) {
		return nil, nil
	}
	return collect[adapter.RoutineRow](ctx, c.pool, "routines", `
		SELECT current_database() AS routine_cat, n.nspname AS routine_schem, p.proname AS routine_name,
		       p.proname || '_' || CAST(p.oid AS text) AS specific_name,
		       CASE p.prokind WHEN 'p' THEN 'PROCEDURE' ELSE 'FUNCTION' END AS routine_type,
		       COALESCE(pg_get_function_result(p.oid), '') AS return_type,
		       COALESCE(obj_description(p.oid, 'pg_proc'), '') AS remarks,
		       CASE WHEN p.prokind IN ('a', 'w') THEN '' ELSE COALESCE(pg_get_functiondef(p.oid), '') END AS definition
		FROM pg_catalog.pg_proc p
		JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname NOT IN `+systemSchemas+`
		  AND ($1 = '' OR n.nspname = $1)
		  AND p.proname LIKE $2
		ORDER BY n.nspname, p.proname, specific_name`,
		scope.Schema, adapter.LikePattern(namePattern))
}

func (c *pgConn) RoutineColumns(ctx context.Context, scope adapter.Scope, routinePattern string) ([]adapter.RoutineColumnRow, error) {
	if !c.inCatalog(scope) {
		return nil, nil
	}
	return collect[adapter.RoutineColumnRow](ctx, c.pool, "routine columns", `
		SELECT CAST(r.routine_catalog AS text) AS routine_cat,
		       CAST(r.routine_schema AS text) AS routine_schem,
		       CAST(r.routine_name AS text) AS routine_name,
		       CAST(p.specific_name AS text) AS specific_name,
		       COALESCE(CAST(p.parameter_name AS text), '$' || CAST(p.ordinal_position AS text)) AS column_name,
		       COALESCE(CAST(p.parameter_mode AS text), 'IN') AS column_type,
		       CAST(p.udt_name AS text) AS type_name,
		       CAST(COALESCE(p.character_maximum_length, 0) AS int) AS length,
		       CAST(COALESCE(p.numeric_precision, 0) AS int) AS precision,
		       true AS is_nullable,
		       '' AS remarks,
		       CAST(p.ordinal_position AS int) AS ordinal_position
		FROM information_schema.parameters p
		JOIN information_schema.routines r
		  ON r.specific_schema = p.specific_schema AND r.specific_name = p.specific_name
		WHERE r.routine_schema NOT IN `+systemSchemas+`
		  AND ($1 = '' OR r.routine_schema = $1)
		  AND r.routine_name LIKE $2
		ORDER BY r.routine_schema, p.specific_name, p.ordinal_position`,
		scope.Schema, adapter.LikePattern(routinePattern))
}

func (c *pgConn) Sequences(ctx context.Context, scope adapter.Scope, namePattern string) ([]adapter.SequenceRow, error) {
	if !c.inCatalog(scope) {
		return nil, nil
	}
	return collect[adapter.SequenceRow](ctx, c.pool, "sequences", `
		SELECT CAST(s.sequence_catalog AS text) AS sequence_catalog,
		       CAST(s.sequence_schema AS text) AS sequence_schema,
		       CAST(s.sequence_name AS text) AS sequence_name,
		       CAST(s.increment AS bigint) AS increment,
		       CAST(s.minimum_value AS text) AS minimum_value,
		       CAST(s.maximum_value AS text) AS maximum_value,
		       s.cycle_option = 'YES' AS cycle_option,
		       '' AS remarks
		FROM information_schema.sequences s
		WHERE ($1 = '' OR s.sequence_schema = $1)
		  AND s.sequence_name LIKE $2
		ORDER BY s.sequence_schema, s.sequence_name`,
		scope.Schema, adapter.LikePattern(namePattern))
}

func (c *pgConn) Synonyms(context.Context, adapter.Scope, string) ([]adapter.SynonymRow, error) {
	return nil, fmt.Errorf("postgres synonyms: %w", adapter.ErrUnsupported)
}

func (c *pgConn) CountRows(ctx context.Context, _, schemaName, table string) (int64, error) {
	if schemaName == "" {
		schemaName = "public"
	}
	var n int64
	q := "SELECT count(*) FROM " + pgx.Identifier{schemaName, table}.Sanitize()
	if err := c.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres count %s.%s: %w", schemaName, table, err)
	}
	return n, nil
}
