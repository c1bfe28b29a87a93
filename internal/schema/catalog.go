package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDanglingReference is returned when a foreign key would point at, or
// still points at, a table that is not in the catalog.
var ErrDanglingReference = errors.New("dangling foreign key reference")

type tableKey struct {
	schema SchemaID
	name   string
}

type routineKey struct {
	schema   SchemaID
	specific string
}

// Catalog owns every entity of a crawl. Removed entities leave a nil slot
// behind so that outstanding handles keep resolving, to nil.
type Catalog struct {
	Name    string
	Product string

	schemas   []*Schema
	tables    []*Table
	routines  []*Routine
	fks       []*ForeignKey
	sequences []*Sequence
	synonyms  []*Synonym

	schemaIndex  map[SchemaKey]SchemaID
	tableIndex   map[tableKey]TableID
	routineIndex map[routineKey]RoutineID
}

// NewCatalog returns an empty catalog for the named database.
func NewCatalog(name, product string) *Catalog {
	return &Catalog{
		Name:         name,
		Product:      product,
		schemaIndex:  make(map[SchemaKey]SchemaID),
		tableIndex:   make(map[tableKey]TableID),
		routineIndex: make(map[routineKey]RoutineID),
	}
}

// --- Schemas ---

// AddSchema registers a schema, returning the existing handle if the schema
// is already known.
func (c *Catalog) AddSchema(catalog, name string) SchemaID {
	key := NewSchemaKey(catalog, name)
	if id, ok := c.schemaIndex[key]; ok {
		return id
	}
	id := SchemaID(len(c.schemas))
	c.schemas = append(c.schemas, &Schema{ID: id, Key: key})
	c.schemaIndex[key] = id
	return id
}

// LookupSchema finds a schema by catalog and schema name. It never creates
// anything.
func (c *Catalog) LookupSchema(catalog, name string) (SchemaID, bool) {
	id, ok := c.schemaIndex[NewSchemaKey(catalog, name)]
	return id, ok
}

// Schema resolves a handle; nil when the schema was removed.
func (c *Catalog) Schema(id SchemaID) *Schema {
	if int(id) < 0 || int(id) >= len(c.schemas) {
		return nil
	}
	return c.schemas[id]
}

// Schemas returns the live schemas in insertion order.
func (c *Catalog) Schemas() []*Schema {
	return live(c.schemas)
}

// RemoveSchema removes a schema and everything in it.
func (c *Catalog) RemoveSchema(id SchemaID) {
	s := c.Schema(id)
	if s == nil {
		return
	}
	for _, t := range c.TablesIn(id) {
		c.RemoveTable(t.ID)
	}
	for _, r := range c.RoutinesIn(id) {
		c.RemoveRoutine(r.ID)
	}
	for _, sq := range c.SequencesIn(id) {
		c.RemoveSequence(sq.ID)
	}
	for _, sy := range c.SynonymsIn(id) {
		c.RemoveSynonym(sy.ID)
	}
	delete(c.schemaIndex, s.Key)
	c.schemas[id] = nil
}

// --- Tables ---

// AddTable registers a table in a schema, returning the existing handle if
// the table is already known.
func (c *Catalog) AddTable(schemaID SchemaID, name, typ string) TableID {
	key := tableKey{schemaID, name}
	if id, ok := c.tableIndex[key]; ok {
		return id
	}
	s := c.Schema(schemaID)
	if s == nil {
		panic(fmt.Sprintf("schema: AddTable on unknown schema %d", schemaID))
	}
	id := TableID(len(c.tables))
	c.tables = append(c.tables, &Table{
		ID:       id,
		Schema:   schemaID,
		Name:     name,
		Type:     typ,
		fullName: JoinName(s.Key.Catalog, s.Key.Name, name),
	})
	c.tableIndex[key] = id
	return id
}

// LookupTable finds a table by schema handle and name.
func (c *Catalog) LookupTable(schemaID SchemaID, name string) (TableID, bool) {
	id, ok := c.tableIndex[tableKey{schemaID, name}]
	return id, ok
}

// Table resolves a handle; nil when the table was removed.
func (c *Catalog) Table(id TableID) *Table {
	if int(id) < 0 || int(id) >= len(c.tables) {
		return nil
	}
	return c.tables[id]
}

// Tables returns the live tables in insertion order.
func (c *Catalog) Tables() []*Table {
	return live(c.tables)
}

// TablesIn returns the live tables of one schema.
func (c *Catalog) TablesIn(schemaID SchemaID) []*Table {
	var out []*Table
	for _, t := range c.tables {
		if t != nil && t.Schema == schemaID {
			out = append(out, t)
		}
	}
	return out
}

// RemoveTable removes a table together with every foreign key that touches
// it, from both ends.
func (c *Catalog) RemoveTable(id TableID) {
	t := c.Table(id)
	if t == nil {
		return
	}
	for _, fkID := range append([]FKID(nil), t.ForeignKeys...) {
		c.RemoveForeignKey(fkID)
	}
	delete(c.tableIndex, tableKey{t.Schema, t.Name})
	c.tables[id] = nil
}

// --- Foreign keys ---

// AddForeignKey stores a key and lists it on its child and parent tables.
// Both tables must be live.
func (c *Catalog) AddForeignKey(fk ForeignKey) (FKID, error) {
	child, parent := c.Table(fk.Child), c.Table(fk.Parent)
	if child == nil || parent == nil {
		return 0, fmt.Errorf("foreign key %s: %w", fk.Name, ErrDanglingReference)
	}
	id := FKID(len(c.fks))
	fk.ID = id
	c.fks = append(c.fks, &fk)
	child.ForeignKeys = append(child.ForeignKeys, id)
	if parent != child {
		parent.ForeignKeys = append(parent.ForeignKeys, id)
	}
	return id, nil
}

// ForeignKey resolves a handle; nil when the key was removed.
func (c *Catalog) ForeignKey(id FKID) *ForeignKey {
	if int(id) < 0 || int(id) >= len(c.fks) {
		return nil
	}
	return c.fks[id]
}

// ForeignKeys returns the live foreign keys in insertion order.
func (c *Catalog) ForeignKeys() []*ForeignKey {
	return live(c.fks)
}

// ImportedKeys returns the keys in which t is the child.
func (c *Catalog) ImportedKeys(t *Table) []*ForeignKey {
	var out []*ForeignKey
	for _, id := range t.ForeignKeys {
		if fk := c.ForeignKey(id); fk != nil && fk.Child == t.ID {
			out = append(out, fk)
		}
	}
	return out
}

// ExportedKeys returns the keys in which t is the parent.
func (c *Catalog) ExportedKeys(t *Table) []*ForeignKey {
	var out []*ForeignKey
	for _, id := range t.ForeignKeys {
		if fk := c.ForeignKey(id); fk != nil && fk.Parent == t.ID {
			out = append(out, fk)
		}
	}
	return out
}

// RemoveForeignKey removes a key from the catalog and from both tables.
func (c *Catalog) RemoveForeignKey(id FKID) {
	fk := c.ForeignKey(id)
	if fk == nil {
		return
	}
	for _, tid := range []TableID{fk.Child, fk.Parent} {
		if t := c.Table(tid); t != nil {
			t.ForeignKeys = without(t.ForeignKeys, id)
		}
	}
	c.fks[id] = nil
}

// --- Routines ---

// AddRoutine registers a routine. Routines are keyed by specific name; an
// empty specific name falls back to the routine name.
func (c *Catalog) AddRoutine(schemaID SchemaID, name, specificName string, typ RoutineType) RoutineID {
	if specificName == "" {
		specificName = name
	}
	key := routineKey{schemaID, specificName}
	if id, ok := c.routineIndex[key]; ok {
		return id
	}
	s := c.Schema(schemaID)
	if s == nil {
		panic(fmt.Sprintf("schema: AddRoutine on unknown schema %d", schemaID))
	}
	id := RoutineID(len(c.routines))
	c.routines = append(c.routines, &Routine{
		ID:           id,
		Schema:       schemaID,
		Name:         name,
		SpecificName: specificName,
		Type:         typ,
		fullName:     JoinName(s.Key.Catalog, s.Key.Name, name),
	})
	c.routineIndex[key] = id
	return id
}

// LookupRoutine finds a routine by schema handle and specific name.
func (c *Catalog) LookupRoutine(schemaID SchemaID, specificName string) (RoutineID, bool) {
	id, ok := c.routineIndex[routineKey{schemaID, specificName}]
	return id, ok
}

// RoutinesNamed returns every live routine of a schema with the given
// (non-specific) name, that is all overloads.
func (c *Catalog) RoutinesNamed(schemaID SchemaID, name string) []*Routine {
	var out []*Routine
	for _, r := range c.routines {
		if r != nil && r.Schema == schemaID && r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Routine resolves a handle; nil when the routine was removed.
func (c *Catalog) Routine(id RoutineID) *Routine {
	if int(id) < 0 || int(id) >= len(c.routines) {
		return nil
	}
	return c.routines[id]
}

// Routines returns the live routines in insertion order.
func (c *Catalog) Routines() []*Routine {
	return live(c.routines)
}

// RoutinesIn returns the live routines of one schema.
func (c *Catalog) RoutinesIn(schemaID SchemaID) []*Routine {
	var out []*Routine
	for _, r := range c.routines {
		if r != nil && r.Schema == schemaID {
			out = append(out, r)
		}
	}
	return out
}

// RemoveRoutine removes a routine and its columns.
func (c *Catalog) RemoveRoutine(id RoutineID) {
	r := c.Routine(id)
	if r == nil {
		return
	}
	delete(c.routineIndex, routineKey{r.Schema, r.SpecificName})
	c.routines[id] = nil
}

// --- Sequences ---

// AddSequence stores a sequence in a schema.
func (c *Catalog) AddSequence(schemaID SchemaID, seq Sequence) SequenceID {
	s := c.Schema(schemaID)
	if s == nil {
		panic(fmt.Sprintf("schema: AddSequence on unknown schema %d", schemaID))
	}
	id := SequenceID(len(c.sequences))
	seq.ID = id
	seq.Schema = schemaID
	seq.fullName = JoinName(s.Key.Catalog, s.Key.Name, seq.Name)
	c.sequences = append(c.sequences, &seq)
	return id
}

func (c *Catalog) Sequence(id SequenceID) *Sequence {
	if int(id) < 0 || int(id) >= len(c.sequences) {
		return nil
	}
	return c.sequences[id]
}

func (c *Catalog) Sequences() []*Sequence {
	return live(c.sequences)
}

func (c *Catalog) SequencesIn(schemaID SchemaID) []*Sequence {
	var out []*Sequence
	for _, s := range c.sequences {
		if s != nil && s.Schema == schemaID {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) RemoveSequence(id SequenceID) {
	if c.Sequence(id) != nil {
		c.sequences[id] = nil
	}
}

// --- Synonyms ---

// AddSynonym stores a synonym in a schema.
func (c *Catalog) AddSynonym(schemaID SchemaID, syn Synonym) SynonymID {
	s := c.Schema(schemaID)
	if s == nil {
		panic(fmt.Sprintf("schema: AddSynonym on unknown schema %d", schemaID))
	}
	id := SynonymID(len(c.synonyms))
	syn.ID = id
	syn.Schema = schemaID
	syn.fullName = JoinName(s.Key.Catalog, s.Key.Name, syn.Name)
	c.synonyms = append(c.synonyms, &syn)
	return id
}

func (c *Catalog) Synonym(id SynonymID) *Synonym {
	if int(id) < 0 || int(id) >= len(c.synonyms) {
		return nil
	}
	return c.synonyms[id]
}

func (c *Catalog) Synonyms() []*Synonym {
	return live(c.synonyms)
}

func (c *Catalog) SynonymsIn(schemaID SchemaID) []*Synonym {
	var out []*Synonym
	for _, s := range c.synonyms {
		if s != nil && s.Schema == schemaID {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) RemoveSynonym(id SynonymID) {
	if c.Synonym(id) != nil {
		c.synonyms[id] = nil
	}
}

// --- Consistency ---

// Verify checks that every live foreign key joins two live tables that both
// list it, and that every key listed on a table is live.
func (c *Catalog) Verify() error {
	var problems []string
	for _, fk := range c.ForeignKeys() {
		for _, tid := range []TableID{fk.Child, fk.Parent} {
			t := c.Table(tid)
			if t == nil {
				problems = append(problems, fmt.Sprintf("%s references removed table %d", fk.Name, tid))
				continue
			}
			if !contains(t.ForeignKeys, fk.ID) {
				problems = append(problems, fmt.Sprintf("%s is not listed on %s", fk.Name, t.FullName()))
			}
		}
	}
	for _, t := range c.Tables() {
		for _, id := range t.ForeignKeys {
			if c.ForeignKey(id) == nil {
				problems = append(problems, fmt.Sprintf("%s lists removed foreign key %d", t.FullName(), id))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrDanglingReference, strings.Join(problems, "; "))
	}
	return nil
}

// Counts summarises how many live entities of each kind the catalog holds.
type Counts struct {
	Schemas        int
	Tables         int
	Columns        int
	ForeignKeys    int
	Routines       int
	RoutineColumns int
	Sequences      int
	Synonyms       int
}

// Counts tallies the live entities.
func (c *Catalog) Counts() Counts {
	n := Counts{
		Schemas:     len(c.Schemas()),
		ForeignKeys: len(c.ForeignKeys()),
		Sequences:   len(c.Sequences()),
		Synonyms:    len(c.Synonyms()),
	}
	for _, t := range c.Tables() {
		n.Tables++
		n.Columns += len(t.Columns)
	}
	for _, r := range c.Routines() {
		n.Routines++
		n.RoutineColumns += len(r.Columns)
	}
	return n
}

func live[T any](s []*T) []*T {
	out := make([]*T, 0, len(s))
	for _, v := range s {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func without[T comparable](s []T, v T) []T {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func contains[T comparable](s []T, v T) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
