package adapter

// Rows returned by a MetadataSource. Column names follow the JDBC metadata
// result sets so that data dictionary queries can be scanned into the same
// structs with sqlx.

type SchemaRow struct {
	Catalog string `db:"table_catalog"`
	Schema  string `db:"table_schem"`
}

type TableRow struct {
	Catalog    string `db:"table_cat"`
	Schema     string `db:"table_schem"`
	Name       string `db:"table_name"`
	Type       string `db:"table_type"`
	Remarks    string `db:"remarks"`
	Definition string `db:"definition"`
}

type ColumnRow struct {
	Catalog       string `db:"table_cat"`
	Schema        string `db:"table_schem"`
	Table         string `db:"table_name"`
	Name          string `db:"column_name"`
	TypeName      string `db:"type_name"`
	Size          int    `db:"column_size"`
	DecimalDigits int    `db:"decimal_digits"`
	Nullable      bool   `db:"is_nullable"`
	Default       string `db:"column_def"`
	Remarks       string `db:"remarks"`
	Ordinal       int    `db:"ordinal_position"`
	PartOfPK      bool   `db:"is_pk"`
	AutoIncrement bool   `db:"is_autoincrement"`
	Generated     bool   `db:"is_generatedcolumn"`
}

// IndexRow is one column of one index. Ordinal orders columns within the
// index, starting at 1.
type IndexRow struct {
	Catalog string `db:"table_cat"`
	Schema  string `db:"table_schem"`
	Table   string `db:"table_name"`
	Name    string `db:"index_name"`
	Column  string `db:"column_name"`
	Ordinal int    `db:"ordinal_position"`
	Unique  bool   `db:"is_unique"`
	Primary bool   `db:"is_primary"`
}

// ForeignKeyRow is one column pair of an imported key. KeySeq orders the
// pairs of a multi-column key, starting at 1.
type ForeignKeyRow struct {
	PKCatalog  string `db:"pktable_cat"`
	PKSchema   string `db:"pktable_schem"`
	PKTable    string `db:"pktable_name"`
	PKColumn   string `db:"pkcolumn_name"`
	FKCatalog  string `db:"fktable_cat"`
	FKSchema   string `db:"fktable_schem"`
	FKTable    string `db:"fktable_name"`
	FKColumn   string `db:"fkcolumn_name"`
	KeySeq     int    `db:"key_seq"`
	UpdateRule string `db:"update_rule"`
	DeleteRule string `db:"delete_rule"`
	Name       string `db:"fk_name"`
}

type TriggerRow struct {
	Catalog     string `db:"trigger_catalog"`
	Schema      string `db:"trigger_schema"`
	Table       string `db:"event_object_table"`
	Name        string `db:"trigger_name"`
	Event       string `db:"event_manipulation"`
	Timing      string `db:"action_timing"`
	Orientation string `db:"action_orientation"`
	Action      string `db:"action_statement"`
}

type RoutineRow struct {
	Catalog      string `db:"routine_cat"`
	Schema       string `db:"routine_schem"`
	Name         string `db:"routine_name"`
	SpecificName string `db:"specific_name"`
	Type         string `db:"routine_type"`
	ReturnType   string `db:"return_type"`
	Remarks      string `db:"remarks"`
	Definition   string `db:"definition"`
}

// RoutineColumnRow is a parameter or result column. Kind is either a word
// (IN, OUT, INOUT, RETURN, RESULT) or the JDBC column type code.
type RoutineColumnRow struct {
	Catalog      string `db:"routine_cat"`
	Schema       string `db:"routine_schem"`
	RoutineName  string `db:"routine_name"`
	SpecificName string `db:"specific_name"`
	Name         string `db:"column_name"`
	Kind         string `db:"column_type"`
	TypeName     string `db:"type_name"`
	Size         int    `db:"length"`
	Precision    int    `db:"precision"`
	Nullable     bool   `db:"is_nullable"`
	Remarks      string `db:"remarks"`
	Ordinal      int    `db:"ordinal_position"`
}

type SequenceRow struct {
	Catalog   string `db:"sequence_catalog"`
	Schema    string `db:"sequence_schema"`
	Name      string `db:"sequence_name"`
	Increment int64  `db:"increment"`
	Minimum   string `db:"minimum_value"`
	Maximum   string `db:"maximum_value"`
	Cycle     bool   `db:"cycle_option"`
	Remarks   string `db:"remarks"`
}

type SynonymRow struct {
	Catalog    string `db:"synonym_catalog"`
	Schema     string `db:"synonym_schema"`
	Name       string `db:"synonym_name"`
	RefCatalog string `db:"referenced_object_catalog"`
	RefSchema  string `db:"referenced_object_schema"`
	RefName    string `db:"referenced_object_name"`
	Remarks    string `db:"remarks"`
}
