// Package schema holds the in-memory model of a crawled database. Entities
// live in arenas owned by a Catalog and refer to each other by handle, so a
// foreign key can be shared by two tables without either owning it.
package schema

import "strings"

// Handles into the catalog arenas. A handle stays valid for the life of the
// catalog; once the entity is removed the handle resolves to nil.
type (
	SchemaID   int
	TableID    int
	RoutineID  int
	FKID       int
	SequenceID int
	SynonymID  int
)

// JoinName joins the non-blank parts of a name with dots.
func JoinName(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}

// SchemaKey identifies a schema. Either part may be empty: SQLite has no
// catalog and MySQL has no schema apart from the database.
type SchemaKey struct {
	Catalog string
	Name    string
}

// NewSchemaKey trims both parts so that blank and empty compare equal.
func NewSchemaKey(catalog, name string) SchemaKey {
	return SchemaKey{Catalog: strings.TrimSpace(catalog), Name: strings.TrimSpace(name)}
}

// FullName returns "catalog.schema" without blank parts.
func (k SchemaKey) FullName() string {
	return JoinName(k.Catalog, k.Name)
}

// Schema is a namespace of tables, routines, sequences and synonyms.
type Schema struct {
	ID  SchemaID
	Key SchemaKey
}

func (s *Schema) FullName() string { return s.Key.FullName() }

// Table types as reported by the drivers.
const (
	TypeTable            = "TABLE"
	TypeView             = "VIEW"
	TypeMaterializedView = "MATERIALIZED VIEW"
	TypeGlobalTemporary  = "GLOBAL TEMPORARY"
	TypeSystemTable      = "SYSTEM TABLE"
)

// Table represents a table, view or other relation.
type Table struct {
	ID         TableID
	Schema     SchemaID
	Name       string
	Type       string
	Remarks    string
	Definition string

	Columns     []*Column
	Indexes     []Index
	Triggers    []Trigger
	ForeignKeys []FKID

	fullName    string
	rowCount    int64
	hasRowCount bool
	nextOrdinal int
}

func (t *Table) FullName() string { return t.fullName }

// IsView reports whether the table is any kind of view.
func (t *Table) IsView() bool {
	return strings.Contains(strings.ToUpper(t.Type), "VIEW")
}

// AddColumn appends a column and assigns the next ordinal position. Ordinals
// count every column ever added to the table, so removing a column never
// changes the position of another.
func (t *Table) AddColumn(c Column) *Column {
	c.Ordinal = t.nextOrdinal
	c.fullName = JoinName(t.fullName, c.Name)
	t.nextOrdinal++
	col := &c
	t.Columns = append(t.Columns, col)
	return col
}

// RestoreColumn appends a column keeping its recorded ordinal. Snapshots use
// it so that positions survive a save and load.
func (t *Table) RestoreColumn(c Column) *Column {
	c.fullName = JoinName(t.fullName, c.Name)
	if c.Ordinal >= t.nextOrdinal {
		t.nextOrdinal = c.Ordinal + 1
	}
	col := &c
	t.Columns = append(t.Columns, col)
	return col
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// RetainColumns keeps the columns for which keep returns true and returns the
// number removed.
func (t *Table) RetainColumns(keep func(*Column) bool) int {
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if keep(c) {
			kept = append(kept, c)
		}
	}
	removed := len(t.Columns) - len(kept)
	for i := len(kept); i < len(t.Columns); i++ {
		t.Columns[i] = nil
	}
	t.Columns = kept
	return removed
}

// PrimaryKey returns the primary key index, or nil.
func (t *Table) PrimaryKey() *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Primary {
			return &t.Indexes[i]
		}
	}
	return nil
}

// SetRowCount records the number of rows in the table.
func (t *Table) SetRowCount(n int64) {
	t.rowCount = n
	t.hasRowCount = true
}

// RowCount returns the row count and whether it is known.
func (t *Table) RowCount() (int64, bool) {
	return t.rowCount, t.hasRowCount
}

// Column represents a table column.
type Column struct {
	Name          string
	Ordinal       int
	TypeName      string
	Size          int
	DecimalDigits int
	Nullable      bool
	Default       string
	Remarks       string
	PartOfPK      bool
	AutoIncrement bool
	Generated     bool

	fullName string
}

func (c *Column) FullName() string { return c.fullName }

// Index represents a table index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
	Primary bool
}

// Trigger represents a table trigger.
type Trigger struct {
	Name        string
	Event       string
	Timing      string
	Orientation string
	Action      string
}

// ColumnRef pairs a child column with the parent column it references.
type ColumnRef struct {
	Child  string
	Parent string
}

// ForeignKey is a directed reference from Child to Parent. It is stored once
// in the catalog and listed by handle on both tables.
type ForeignKey struct {
	ID         FKID
	Name       string
	Child      TableID
	Parent     TableID
	Columns    []ColumnRef
	UpdateRule string
	DeleteRule string
}

// IsSelfReferencing reports whether the key references its own table.
func (fk *ForeignKey) IsSelfReferencing() bool { return fk.Child == fk.Parent }

// Other returns the table at the other end of the key from t.
func (fk *ForeignKey) Other(t TableID) TableID {
	if fk.Child == t {
		return fk.Parent
	}
	return fk.Child
}

// RoutineType distinguishes procedures from functions.
type RoutineType string

const (
	RoutineProcedure RoutineType = "PROCEDURE"
	RoutineFunction  RoutineType = "FUNCTION"
	RoutineUnknown   RoutineType = "UNKNOWN"
)

// ParseRoutineType maps a driver's routine type text to a RoutineType.
func ParseRoutineType(s string) RoutineType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PROCEDURE":
		return RoutineProcedure
	case "FUNCTION", "TABLE FUNCTION", "AGGREGATE", "WINDOW":
		return RoutineFunction
	default:
		return RoutineUnknown
	}
}

// Routine is a stored procedure or function. SpecificName tells overloads
// apart; it equals Name when the database has no overloading.
type Routine struct {
	ID           RoutineID
	Schema       SchemaID
	Name         string
	SpecificName string
	Type         RoutineType
	ReturnType   string
	Remarks      string
	Definition   string

	Columns []*RoutineColumn

	fullName    string
	nextOrdinal int
}

func (r *Routine) FullName() string { return r.fullName }

// AddColumn appends a parameter or result column with the next ordinal.
func (r *Routine) AddColumn(c RoutineColumn) *RoutineColumn {
	c.Ordinal = r.nextOrdinal
	c.fullName = JoinName(r.fullName, c.Name)
	r.nextOrdinal++
	col := &c
	r.Columns = append(r.Columns, col)
	return col
}

// RestoreColumn appends a column keeping its recorded ordinal.
func (r *Routine) RestoreColumn(c RoutineColumn) *RoutineColumn {
	c.fullName = JoinName(r.fullName, c.Name)
	if c.Ordinal >= r.nextOrdinal {
		r.nextOrdinal = c.Ordinal + 1
	}
	col := &c
	r.Columns = append(r.Columns, col)
	return col
}

// RetainColumns keeps the columns for which keep returns true and returns the
// number removed.
func (r *Routine) RetainColumns(keep func(*RoutineColumn) bool) int {
	kept := r.Columns[:0]
	for _, c := range r.Columns {
		if keep(c) {
			kept = append(kept, c)
		}
	}
	removed := len(r.Columns) - len(kept)
	for i := len(kept); i < len(r.Columns); i++ {
		r.Columns[i] = nil
	}
	r.Columns = kept
	return removed
}

// ParameterKind is the role of a routine column.
type ParameterKind string

const (
	ParamIn      ParameterKind = "in"
	ParamInOut   ParameterKind = "inout"
	ParamOut     ParameterKind = "out"
	ParamReturn  ParameterKind = "return"
	ParamResult  ParameterKind = "result"
	ParamUnknown ParameterKind = "unknown"
)

// ParseParameterKind accepts both the JDBC numeric codes and the words used
// by information_schema.parameters.
func ParseParameterKind(s string) ParameterKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "IN":
		return ParamIn
	case "2", "INOUT", "IN/OUT":
		return ParamInOut
	case "4", "OUT":
		return ParamOut
	case "5", "RETURN":
		return ParamReturn
	case "3", "RESULT":
		return ParamResult
	default:
		return ParamUnknown
	}
}

// RoutineColumn is a parameter, return value or result column of a routine.
type RoutineColumn struct {
	Name      string
	Ordinal   int
	Kind      ParameterKind
	TypeName  string
	Size      int
	Precision int
	Nullable  bool
	Remarks   string

	fullName string
}

func (c *RoutineColumn) FullName() string { return c.fullName }

// Sequence is a number generator. Minimum and maximum are kept as text
// because some databases allow values beyond int64.
type Sequence struct {
	ID        SequenceID
	Schema    SchemaID
	Name      string
	Increment int64
	Minimum   string
	Maximum   string
	Cycle     bool
	Remarks   string

	fullName string
}

func (s *Sequence) FullName() string { return s.fullName }

// Synonym is an alias for another database object.
type Synonym struct {
	ID         SynonymID
	Schema     SchemaID
	Name       string
	RefCatalog string
	RefSchema  string
	RefName    string
	Remarks    string

	fullName string
}

func (s *Synonym) FullName() string { return s.fullName }

// ReferencedName returns the full name of the object the synonym points to.
func (s *Synonym) ReferencedName() string {
	return JoinName(s.RefCatalog, s.RefSchema, s.RefName)
}
