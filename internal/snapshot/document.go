package snapshot

import (
	"fmt"

	"github.com/sadopc/dbcrawl/internal/schema"
)

// Document is the serialized form of a catalog. The JSON and YAML renderers
// emit the same shape.
type Document struct {
	Version     int          `json:"version" yaml:"version"`
	Name        string       `json:"name" yaml:"name"`
	Product     string       `json:"product,omitempty" yaml:"product,omitempty"`
	Schemas     []SchemaDoc  `json:"schemas" yaml:"schemas"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
}

type SchemaDoc struct {
	Catalog   string     `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Name      string     `json:"name" yaml:"name"`
	Tables    []Table    `json:"tables,omitempty" yaml:"tables,omitempty"`
	Routines  []Routine  `json:"routines,omitempty" yaml:"routines,omitempty"`
	Sequences []Sequence `json:"sequences,omitempty" yaml:"sequences,omitempty"`
	Synonyms  []Synonym  `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
}

type Table struct {
	Name       string    `json:"name" yaml:"name"`
	Type       string    `json:"type" yaml:"type"`
	Remarks    string    `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	Definition string    `json:"definition,omitempty" yaml:"definition,omitempty"`
	RowCount   *int64    `json:"row_count,omitempty" yaml:"row_count,omitempty"`
	Columns    []Column  `json:"columns,omitempty" yaml:"columns,omitempty"`
	Indexes    []Index   `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	Triggers   []Trigger `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

type Column struct {
	Name          string `json:"name" yaml:"name"`
	Ordinal       int    `json:"ordinal" yaml:"ordinal"`
	Type          string `json:"type" yaml:"type"`
	Size          int    `json:"size,omitempty" yaml:"size,omitempty"`
	DecimalDigits int    `json:"decimal_digits,omitempty" yaml:"decimal_digits,omitempty"`
	Nullable      bool   `json:"nullable" yaml:"nullable"`
	Default       string `json:"default,omitempty" yaml:"default,omitempty"`
	Remarks       string `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	PartOfPK      bool   `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	AutoIncrement bool   `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty"`
	Generated     bool   `json:"generated,omitempty" yaml:"generated,omitempty"`
}

type Index struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Primary bool     `json:"primary,omitempty" yaml:"primary,omitempty"`
}

type Trigger struct {
	Name        string `json:"name" yaml:"name"`
	Event       string `json:"event,omitempty" yaml:"event,omitempty"`
	Timing      string `json:"timing,omitempty" yaml:"timing,omitempty"`
	Orientation string `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	Action      string `json:"action,omitempty" yaml:"action,omitempty"`
}

// TableRef names a table across schemas.
type TableRef struct {
	Catalog string `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Schema  string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Table   string `json:"table" yaml:"table"`
}

func (r TableRef) String() string { return schema.JoinName(r.Catalog, r.Schema, r.Table) }

type ColumnPair struct {
	Child  string `json:"child" yaml:"child"`
	Parent string `json:"parent" yaml:"parent"`
}

type ForeignKey struct {
	Name       string       `json:"name" yaml:"name"`
	Child      TableRef     `json:"child" yaml:"child"`
	Parent     TableRef     `json:"parent" yaml:"parent"`
	Columns    []ColumnPair `json:"columns,omitempty" yaml:"columns,omitempty"`
	UpdateRule string       `json:"update_rule,omitempty" yaml:"update_rule,omitempty"`
	DeleteRule string       `json:"delete_rule,omitempty" yaml:"delete_rule,omitempty"`
}

type Routine struct {
	Name         string          `json:"name" yaml:"name"`
	SpecificName string          `json:"specific_name,omitempty" yaml:"specific_name,omitempty"`
	Type         string          `json:"type" yaml:"type"`
	ReturnType   string          `json:"return_type,omitempty" yaml:"return_type,omitempty"`
	Remarks      string          `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	Definition   string          `json:"definition,omitempty" yaml:"definition,omitempty"`
	Columns      []RoutineColumn `json:"columns,omitempty" yaml:"columns,omitempty"`
}

type RoutineColumn struct {
	Name      string `json:"name" yaml:"name"`
	Ordinal   int    `json:"ordinal" yaml:"ordinal"`
	Kind      string `json:"kind" yaml:"kind"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Size      int    `json:"size,omitempty" yaml:"size,omitempty"`
	Precision int    `json:"precision,omitempty" yaml:"precision,omitempty"`
	Nullable  bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Remarks   string `json:"remarks,omitempty" yaml:"remarks,omitempty"`
}

type Sequence struct {
	Name      string `json:"name" yaml:"name"`
	Increment int64  `json:"increment" yaml:"increment"`
	Minimum   string `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum   string `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Cycle     bool   `json:"cycle,omitempty" yaml:"cycle,omitempty"`
	Remarks   string `json:"remarks,omitempty" yaml:"remarks,omitempty"`
}

type Synonym struct {
	Name       string `json:"name" yaml:"name"`
	RefCatalog string `json:"ref_catalog,omitempty" yaml:"ref_catalog,omitempty"`
	RefSchema  string `json:"ref_schema,omitempty" yaml:"ref_schema,omitempty"`
	RefName    string `json:"ref_name" yaml:"ref_name"`
	Remarks    string `json:"remarks,omitempty" yaml:"remarks,omitempty"`
}

// FromCatalog converts the live entities of a catalog.
func FromCatalog(cat *schema.Catalog) Document {
	doc := Document{Version: Version, Name: cat.Name, Product: cat.Product}
	for _, s := range cat.Schemas() {
		sd := SchemaDoc{Catalog: s.Key.Catalog, Name: s.Key.Name}
		for _, t := range cat.TablesIn(s.ID) {
			sd.Tables = append(sd.Tables, tableDoc(t))
		}
		for _, r := range cat.RoutinesIn(s.ID) {
			sd.Routines = append(sd.Routines, routineDoc(r))
		}
		for _, q := range cat.SequencesIn(s.ID) {
			sd.Sequences = append(sd.Sequences, Sequence{
				Name:      q.Name,
				Increment: q.Increment,
				Minimum:   q.Minimum,
				Maximum:   q.Maximum,
				Cycle:     q.Cycle,
				Remarks:   q.Remarks,
			})
		}
		for _, y := range cat.SynonymsIn(s.ID) {
			sd.Synonyms = append(sd.Synonyms, Synonym{
				Name:       y.Name,
				RefCatalog: y.RefCatalog,
				RefSchema:  y.RefSchema,
				RefName:    y.RefName,
				Remarks:    y.Remarks,
			})
		}
		doc.Schemas = append(doc.Schemas, sd)
	}
	for _, fk := range cat.ForeignKeys() {
		out := ForeignKey{
			Name:       fk.Name,
			Child:      tableRef(cat, fk.Child),
			Parent:     tableRef(cat, fk.Parent),
			UpdateRule: fk.UpdateRule,
			DeleteRule: fk.DeleteRule,
		}
		for _, c := range fk.Columns {
			out.Columns = append(out.Columns, ColumnPair{Child: c.Child, Parent: c.Parent})
		}
		doc.ForeignKeys = append(doc.ForeignKeys, out)
	}
	return doc
}

func tableRef(cat *schema.Catalog, id schema.TableID) TableRef {
	t := cat.Table(id)
	s := cat.Schema(t.Schema)
	return TableRef{Catalog: s.Key.Catalog, Schema: s.Key.Name, Table: t.Name}
}

func tableDoc(t *schema.Table) Table {
	out := Table{Name: t.Name, Type: t.Type, Remarks: t.Remarks, Definition: t.Definition}
	if n, ok := t.RowCount(); ok {
		out.RowCount = &n
	}
	for _, c := range t.Columns {
		out.Columns = append(out.Columns, Column{
			Name:          c.Name,
			Ordinal:       c.Ordinal,
			Type:          c.TypeName,
			Size:          c.Size,
			DecimalDigits: c.DecimalDigits,
			Nullable:      c.Nullable,
			Default:       c.Default,
			Remarks:       c.Remarks,
			PartOfPK:      c.PartOfPK,
			AutoIncrement: c.AutoIncrement,
			Generated:     c.Generated,
		})
	}
	for _, idx := range t.Indexes {
		out.Indexes = append(out.Indexes, Index{
			Name:    idx.Name,
			Columns: append([]string(nil), idx.Columns...),
			Unique:  idx.Unique,
			Primary: idx.Primary,
		})
	}
	for _, tr := range t.Triggers {
		out.Triggers = append(out.Triggers, Trigger(tr))
	}
	return out
}

func routineDoc(r *schema.Routine) Routine {
	out := Routine{
		Name:         r.Name,
		SpecificName: r.SpecificName,
		Type:         string(r.Type),
		ReturnType:   r.ReturnType,
		Remarks:      r.Remarks,
		Definition:   r.Definition,
	}
	for _, c := range r.Columns {
		out.Columns = append(out.Columns, RoutineColumn{
			Name:      c.Name,
			Ordinal:   c.Ordinal,
			Kind:      string(c.Kind),
			Type:      c.TypeName,
			Size:      c.Size,
			Precision: c.Precision,
			Nullable:  c.Nullable,
			Remarks:   c.Remarks,
		})
	}
	return out
}

// Catalog rebuilds a catalog from the document. Foreign keys must reference
// tables present in the document.
func (d Document) Catalog() (*schema.Catalog, error) {
	cat := schema.NewCatalog(d.Name, d.Product)
	for _, sd := range d.Schemas {
		sid := cat.AddSchema(sd.Catalog, sd.Name)
		for _, td := range sd.Tables {
			t := cat.Table(cat.AddTable(sid, td.Name, td.Type))
			t.Remarks = td.Remarks
			t.Definition = td.Definition
			if td.RowCount != nil {
				t.SetRowCount(*td.RowCount)
			}
			for _, c := range td.Columns {
				t.RestoreColumn(schema.Column{
					Name:          c.Name,
					Ordinal:       c.Ordinal,
					TypeName:      c.Type,
					Size:          c.Size,
					DecimalDigits: c.DecimalDigits,
					Nullable:      c.Nullable,
					Default:       c.Default,
					Remarks:       c.Remarks,
					PartOfPK:      c.PartOfPK,
					AutoIncrement: c.AutoIncrement,
					Generated:     c.Generated,
				})
			}
			for _, idx := range td.Indexes {
				t.Indexes = append(t.Indexes, schema.Index{
					Name:    idx.Name,
					Columns: idx.Columns,
					Unique:  idx.Unique,
					Primary: idx.Primary,
				})
			}
			for _, tr := range td.Triggers {
				t.Triggers = append(t.Triggers, schema.Trigger(tr))
			}
		}
		for _, rd := range sd.Routines {
			r := cat.Routine(cat.AddRoutine(sid, rd.Name, rd.SpecificName, schema.ParseRoutineType(rd.Type)))
			r.ReturnType = rd.ReturnType
			r.Remarks = rd.Remarks
			r.Definition = rd.Definition
			for _, c := range rd.Columns {
				r.RestoreColumn(schema.RoutineColumn{
					Name:      c.Name,
					Ordinal:   c.Ordinal,
					Kind:      schema.ParseParameterKind(c.Kind),
					TypeName:  c.Type,
					Size:      c.Size,
					Precision: c.Precision,
					Nullable:  c.Nullable,
					Remarks:   c.Remarks,
				})
			}
		}
		for _, q := range sd.Sequences {
			cat.AddSequence(sid, schema.Sequence{
				Name:      q.Name,
				Increment: q.Increment,
				Minimum:   q.Minimum,
				Maximum:   q.Maximum,
				Cycle:     q.Cycle,
				Remarks:   q.Remarks,
			})
		}
		for _, y := range sd.Synonyms {
			cat.AddSynonym(sid, schema.Synonym{
				Name:       y.Name,
				RefCatalog: y.RefCatalog,
				RefSchema:  y.RefSchema,
				RefName:    y.RefName,
				Remarks:    y.Remarks,
			})
		}
	}

	for _, fd := range d.ForeignKeys {
		child, ok := lookup(cat, fd.Child)
		if !ok {
			return nil, fmt.Errorf("foreign key %s: %w: %s", fd.Name, schema.ErrDanglingReference, fd.Child)
		}
		parent, ok := lookup(cat, fd.Parent)
		if !ok {
			return nil, fmt.Errorf("foreign key %s: %w: %s", fd.Name, schema.ErrDanglingReference, fd.Parent)
		}
		fk := schema.ForeignKey{
			Name:       fd.Name,
			Child:      child,
			Parent:     parent,
			UpdateRule: fd.UpdateRule,
			DeleteRule: fd.DeleteRule,
		}
		for _, c := range fd.Columns {
			fk.Columns = append(fk.Columns, schema.ColumnRef{Child: c.Child, Parent: c.Parent})
		}
		if _, err := cat.AddForeignKey(fk); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func lookup(cat *schema.Catalog, ref TableRef) (schema.TableID, bool) {
	sid, ok := cat.LookupSchema(ref.Catalog, ref.Schema)
	if !ok {
		return 0, false
	}
	return cat.LookupTable(sid, ref.Table)
}
