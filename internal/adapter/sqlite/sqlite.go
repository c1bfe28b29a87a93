package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sadopc/dbcrawl/internal/adapter"

	_ "modernc.org/sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	adapter.Register(&sqliteAdapter{})
}

// sqliteAdapter implements adapter.Adapter for SQLite databases.
type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string     { return "sqlite" }
func (a *sqliteAdapter) DefaultPort() int { return 0 }

func (a *sqliteAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	dsn = normalizeDSN(dsn)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite enable foreign keys: %w", err)
	}

	dbName := dsn
	if dsn != ":memory:" {
		dbName = filepath.Base(dsn)
	}

	return &sqliteConn{db: db, dbName: dbName}, nil
}

// normalizeDSN strips common SQLite URI prefixes.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	if strings.HasPrefix(dsn, "file:") {
		return strings.TrimPrefix(dsn, "file:")
	}
	return dsn
}

// sqliteConn implements adapter.Connection. SQLite has no catalogs; each
// attached database (main, temp, ...) is reported as a schema.
type sqliteConn struct {
	db     *sqlx.DB
	dbName string
}

func (c *sqliteConn) AdapterName() string  { return "sqlite" }
func (c *sqliteConn) DatabaseName() string { return c.dbName }
func (c *sqliteConn) DB() *sqlx.DB         { return c.db }

func (c *sqliteConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *sqliteConn) Close() error {
	return c.db.Close()
}

// Schemas lists the attached databases, always including temp.
func (c *sqliteConn) Schemas(ctx context.Context) ([]adapter.SchemaRow, error) {
	var dbs []struct {
		Seq  int            `db:"seq"`
		Name string         `db:"name"`
		File sql.NullString `db:"file"`
	}
	if err := c.db.SelectContext(ctx, &dbs, "PRAGMA database_list"); err != nil {
		return nil, fmt.Errorf("sqlite database_list: %w", err)
	}
	out := make([]adapter.SchemaRow, 0, len(dbs)+1)
	hasTemp := false
	for _, d := range dbs {
		out = append(out, adapter.SchemaRow{Schema: d.Name})
		hasTemp = hasTemp || d.Name == "temp"
	}
	if !hasTemp {
		// temp is only listed once something has been created in it.
		out = append(out, adapter.SchemaRow{Schema: "temp"})
	}
	return out, nil
}

// schemasInScope returns the attached databases a scope selects.
func (c *sqliteConn) schemasInScope(ctx context.Context, scope adapter.Scope) ([]string, error) {
	if scope.Catalog != "" {
		return nil, nil
	}
	all, err := c.Schemas(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range all {
		if scope.Schema == "" || scope.Schema == s.Schema {
			out = append(out, s.Schema)
		}
	}
	return out, nil
}

type masterRow struct {
	Type    string         `db:"type"`
	Name    string         `db:"name"`
	TblName string         `db:"tbl_name"`
	SQL     sql.NullString `db:"sql"`
}

func (c *sqliteConn) master(ctx context.Context, schemaName string, types ...string) ([]masterRow, error) {
	quoted := make([]string, len(types))
	for i, t := range types {
		quoted[i] = "'" + t + "'"
	}
	q := fmt.Sprintf(
		"SELECT type, name, tbl_name, sql FROM %s.sqlite_master WHERE type IN (%s) AND name NOT LIKE 'sqlite_%%' ORDER BY name",
		adapter.QuoteIdent(schemaName), strings.Join(quoted, ", "))
	var rows []masterRow
	if err := c.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("sqlite master %s: %w", schemaName, err)
	}
	return rows, nil
}

// Tables returns tables and views. Tables in the temp database are reported
// as GLOBAL TEMPORARY.
func (c *sqliteConn) Tables(ctx context.Context, scope adapter.Scope, namePattern string, types []string) ([]adapter.TableRow, error) {
	schemas, err := c.schemasInScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []adapter.TableRow
	for _, s := range schemas {
		rows, err := c.master(ctx, s, "table", "view")
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if !adapter.MatchLike(namePattern, r.Name) {
				continue
			}
			row := adapter.TableRow{Schema: s, Name: r.Name, Type: "TABLE"}
			switch {
			case r.Type == "view":
				row.Type = "VIEW"
				row.Definition = r.SQL.String
			case s == "temp":
				row.Type = "GLOBAL TEMPORARY"
			}
			if !adapter.HasType(types, row.Type) {
				continue
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// relations returns (schema, master row) pairs for tables and views whose
// name matches the pattern.
func (c *sqliteConn) relations(ctx context.Context, scope adapter.Scope, pattern string, types ...string) ([]string, []masterRow, error) {
	schemas, err := c.schemasInScope(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	var owners []string
	var out []masterRow
	for _, s := range schemas {
		rows, err := c.master(ctx, s, types...)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range rows {
			if adapter.MatchLike(pattern, r.Name) {
				owners = append(owners, s)
				out = append(out, r)
			}
		}
	}
	return owners, out, nil
}

type tableInfo struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
	Hidden  int            `db:"hidden"`
}

var typeSize = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)`)

// parseTypeSize extracts the size and scale from a declared type such as
// DECIMAL(10,2).
func parseTypeSize(typ string) (size, digits int) {
	m := typeSize.FindStringSubmatch(typ)
	if m == nil {
		return 0, 0
	}
	size, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		digits, _ = strconv.Atoi(m[2])
	}
	return size, digits
}

// Columns returns the columns of matching tables and views, from
// PRAGMA table_xinfo so that generated columns are included.
func (c *sqliteConn) Columns(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.ColumnRow, error) {
	owners, rels, err := c.relations(ctx, scope, tablePattern, "table", "view")
	if err != nil {
		return nil, err
	}
	var out []adapter.ColumnRow
	for i, rel := range rels {
		var info []tableInfo
		q := fmt.Sprintf("PRAGMA %s.table_xinfo(%s)", adapter.QuoteIdent(owners[i]), adapter.QuoteIdent(rel.Name))
		if err := c.db.SelectContext(ctx, &info, q); err != nil {
			return nil, fmt.Errorf("sqlite columns %s: %w", rel.Name, err)
		}
		pkCount := 0
		for _, col := range info {
			if col.PK > 0 {
				pkCount++
			}
		}
		autoinc := strings.Contains(strings.ToUpper(rel.SQL.String), "AUTOINCREMENT")
		for _, col := range info {
			size, digits := parseTypeSize(col.Type)
			out = append(out, adapter.ColumnRow{
				Schema:        owners[i],
				Table:         rel.Name,
				Name:          col.Name,
				TypeName:      col.Type,
				Size:          size,
				DecimalDigits: digits,
				Nullable:      col.NotNull == 0,
				Default:       col.Default.String,
				Ordinal:       col.CID + 1,
				PartOfPK:      col.PK > 0,
				AutoIncrement: autoinc && col.PK > 0 && pkCount == 1 && strings.EqualFold(col.Type, "INTEGER"),
				Generated:     col.Hidden == 2 || col.Hidden == 3,
			})
		}
	}
	return out, nil
}

// Indexes returns one row per index column, including the implicit
// primary key index of rowid tables.
func (c *sqliteConn) Indexes(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.IndexRow, error) {
	owners, rels, err := c.relations(ctx, scope, tablePattern, "table")
	if err != nil {
		return nil, err
	}
	var out []adapter.IndexRow
	for i, rel := range rels {
		var list []struct {
			Seq     int    `db:"seq"`
			Name    string `db:"name"`
			Unique  int    `db:"unique"`
			Origin  string `db:"origin"`
			Partial int    `db:"partial"`
		}
		q := fmt.Sprintf("PRAGMA %s.index_list(%s)", adapter.QuoteIdent(owners[i]), adapter.QuoteIdent(rel.Name))
		if err := c.db.SelectContext(ctx, &list, q); err != nil {
			return nil, fmt.Errorf("sqlite index_list %s: %w", rel.Name, err)
		}
		for _, idx := range list {
			var info []struct {
				SeqNo int            `db:"seqno"`
				CID   int            `db:"cid"`
				Name  sql.NullString `db:"name"`
			}
			q := fmt.Sprintf("PRAGMA %s.index_info(%s)", adapter.QuoteIdent(owners[i]), adapter.QuoteIdent(idx.Name))
			if err := c.db.SelectContext(ctx, &info, q); err != nil {
				return nil, fmt.Errorf("sqlite index_info %s: %w", idx.Name, err)
			}
			for _, col := range info {
				out = append(out, adapter.IndexRow{
					Schema:  owners[i],
					Table:   rel.Name,
					Name:    idx.Name,
					Column:  col.Name.String,
					Ordinal: col.SeqNo + 1,
					Unique:  idx.Unique == 1,
					Primary: idx.Origin == "pk",
				})
			}
		}
	}
	return out, nil
}

// ForeignKeys returns imported keys. SQLite does not expose constraint
// names, so keys are named fk_<table>_<id>.
func (c *sqliteConn) ForeignKeys(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.ForeignKeyRow, error) {
	owners, rels, err := c.relations(ctx, scope, tablePattern, "table")
	if err != nil {
		return nil, err
	}
	var out []adapter.ForeignKeyRow
	for i, rel := range rels {
		var list []struct {
			ID       int            `db:"id"`
			Seq      int            `db:"seq"`
			Table    string         `db:"table"`
			From     string         `db:"from"`
			To       sql.NullString `db:"to"`
			OnUpdate string         `db:"on_update"`
			OnDelete string         `db:"on_delete"`
			Match    string         `db:"match"`
		}
		q := fmt.Sprintf("PRAGMA %s.foreign_key_list(%s)", adapter.QuoteIdent(owners[i]), adapter.QuoteIdent(rel.Name))
		if err := c.db.SelectContext(ctx, &list, q); err != nil {
			return nil, fmt.Errorf("sqlite foreign_key_list %s: %w", rel.Name, err)
		}
		for _, fk := range list {
			to := fk.To.String
			if !fk.To.Valid {
				// A reference without columns targets the primary key.
				to, err = c.primaryKeyColumn(ctx, owners[i], fk.Table, fk.Seq)
				if err != nil {
					return nil, err
				}
			}
			out = append(out, adapter.ForeignKeyRow{
				PKSchema:   owners[i],
				PKTable:    fk.Table,
				PKColumn:   to,
				FKSchema:   owners[i],
				FKTable:    rel.Name,
				FKColumn:   fk.From,
				KeySeq:     fk.Seq + 1,
				UpdateRule: fk.OnUpdate,
				DeleteRule: fk.OnDelete,
				Name:       fmt.Sprintf("fk_%s_%d", rel.Name, fk.ID),
			})
		}
	}
	return out, nil
}

func (c *sqliteConn) primaryKeyColumn(ctx context.Context, schemaName, table string, seq int) (string, error) {
	var info []tableInfo
	q := fmt.Sprintf("PRAGMA %s.table_xinfo(%s)", adapter.QuoteIdent(schemaName), adapter.QuoteIdent(table))
	if err := c.db.SelectContext(ctx, &info, q); err != nil {
		return "", fmt.Errorf("sqlite primary key %s: %w", table, err)
	}
	for _, col := range info {
		if col.PK == seq+1 {
			return col.Name, nil
		}
	}
	return "", nil
}

// Triggers parses event and timing from each trigger's CREATE statement.
func (c *sqliteConn) Triggers(ctx context.Context, scope adapter.Scope, tablePattern string) ([]adapter.TriggerRow, error) {
	schemas, err := c.schemasInScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []adapter.TriggerRow
	for _, s := range schemas {
		rows, err := c.master(ctx, s, "trigger")
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if !adapter.MatchLike(tablePattern, r.TblName) {
				continue
			}
			event, timing := parseTriggerHeader(r.SQL.String)
			out = append(out, adapter.TriggerRow{
				Schema:      s,
				Table:       r.TblName,
				Name:        r.Name,
				Event:       event,
				Timing:      timing,
				Orientation: "ROW",
				Action:      r.SQL.String,
			})
		}
	}
	return out, nil
}

func parseTriggerHeader(ddl string) (event, timing string) {
	head := strings.ToUpper(ddl)
	if i := strings.Index(head, " ON "); i >= 0 {
		head = head[:i]
	}
	for _, e := range []string{"INSERT", "UPDATE", "DELETE"} {
		if strings.Contains(head, e) {
			event = e
			break
		}
	}
	switch {
	case strings.Contains(head, "BEFORE"):
		timing = "BEFORE"
	case strings.Contains(head, "INSTEAD OF"):
		timing = "INSTEAD OF"
	default:
		timing = "AFTER"
	}
	return event, timing
}

func (c *sqliteConn) Routines(context.Context, adapter.Scope, string) ([]adapter.RoutineRow, error) {
	return nil, fmt.Errorf("sqlite routines: %w", adapter.ErrUnsupported)
}

func (c *sqliteConn) RoutineColumns(context.Context, adapter.Scope, string) ([]adapter.RoutineColumnRow, error) {
	return nil, fmt.Errorf("sqlite routine columns: %w", adapter.ErrUnsupported)
}

func (c *sqliteConn) Sequences(context.Context, adapter.Scope, string) ([]adapter.SequenceRow, error) {
	return nil, fmt.Errorf("sqlite sequences: %w", adapter.ErrUnsupported)
}

func (c *sqliteConn) Synonyms(context.Context, adapter.Scope, string) ([]adapter.SynonymRow, error) {
	return nil, fmt.Errorf("sqlite synonyms: %w", adapter.ErrUnsupported)
}

// CountRows returns the number of rows in a table.
func (c *sqliteConn) CountRows(ctx context.Context, _, schemaName, table string) (int64, error) {
	if schemaName == "" {
		schemaName = "main"
	}
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", adapter.QuoteIdent(schemaName), adapter.QuoteIdent(table))
	if err := c.db.GetContext(ctx, &n, q); err != nil {
		return 0, fmt.Errorf("sqlite count %s: %w", table, err)
	}
	return n, nil
}
