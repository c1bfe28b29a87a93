package crawl

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sadopc/dbcrawl/internal/adapter"
	"github.com/sadopc/dbcrawl/internal/inclusion"
	"github.com/sadopc/dbcrawl/internal/schema"
)

// retrieval is the state of one Retrieve call.
type retrieval struct {
	*Crawler
	cat *schema.Catalog
	sum *Summary
}

// skip reports whether a category is turned off, logging why.
func (r *retrieval) skip(c Category) bool {
	ok, reason := r.opts.enabled(c)
	if ok {
		return false
	}
	r.skipped(c, reason)
	return true
}

func (r *retrieval) skipped(c Category, reason string) {
	e := r.sum.entry(c)
	e.Skipped = true
	e.Reason = reason
	r.log.Info("not retrieving "+strings.ReplaceAll(string(c), "_", " ")+", since this was not requested",
		zap.String("reason", reason))
}

func (r *retrieval) dropped(c Category, name string) {
	r.log.Debug("dropping row outside the crawled catalog",
		zap.String("category", string(c)),
		zap.String("name", name))
}

func scopeOf(s *schema.Schema) adapter.Scope {
	return adapter.Scope{Catalog: s.Key.Catalog, Schema: s.Key.Name}
}

// scopes returns one scope per schema for which keep is true.
func (r *retrieval) scopes(keep func(*schema.Schema) bool) []adapter.Scope {
	var out []adapter.Scope
	for _, s := range r.cat.Schemas() {
		if keep == nil || keep(s) {
			out = append(out, scopeOf(s))
		}
	}
	return out
}

func (r *retrieval) holdsTables(s *schema.Schema) bool { return len(r.cat.TablesIn(s.ID)) > 0 }

func (r *retrieval) holdsRoutines(s *schema.Schema) bool { return len(r.cat.RoutinesIn(s.ID)) > 0 }

func (r *retrieval) schemaFor(catalog, name string) (*schema.Schema, bool) {
	id, ok := r.cat.LookupSchema(catalog, name)
	if !ok {
		return nil, false
	}
	return r.cat.Schema(id), true
}

func (r *retrieval) tableFor(catalog, schemaName, table string) (*schema.Table, bool) {
	s, ok := r.schemaFor(catalog, schemaName)
	if !ok {
		return nil, false
	}
	id, ok := r.cat.LookupTable(s.ID, table)
	if !ok {
		return nil, false
	}
	return r.cat.Table(id), true
}

func (r *retrieval) definition(text string) string {
	if !r.opts.InfoLevel.Definitions() {
		return ""
	}
	return strings.TrimSpace(text)
}

func (r *retrieval) schemas(ctx context.Context) error {
	e := r.sum.entry(categorySchemas)
	e.Calls++
	rows, err := r.src.Schemas(ctx)
	if err != nil {
		return &RetrievalError{Category: categorySchemas, Err: err}
	}
	e.Rows = len(rows)
	filter := r.opts.Rules.Filter(inclusion.KindSchema)
	for _, row := range rows {
		key := schema.NewSchemaKey(row.Catalog, row.Schema)
		if !filter.Test(key.FullName()) {
			continue
		}
		if _, ok := r.cat.LookupSchema(key.Catalog, key.Name); ok {
			continue
		}
		r.cat.AddSchema(key.Catalog, key.Name)
		e.Retrieved++
	}
	return nil
}

func (r *retrieval) tables(ctx context.Context) error {
	if r.skip(CategoryTables) {
		return nil
	}
	rows, err := fetch(ctx, r, CategoryTables, r.scopes(nil),
		func(ctx context.Context, s adapter.Scope) ([]adapter.TableRow, error) {
			return r.src.Tables(ctx, s, r.opts.TableNamePattern, r.opts.TableTypes)
		})
	if err != nil {
		return err
	}

	types := make(map[string]bool, len(r.opts.TableTypes))
	for _, t := range r.opts.TableTypes {
		types[strings.ToUpper(strings.TrimSpace(t))] = true
	}
	filter := r.opts.Rules.Filter(inclusion.KindTable)
	e := r.sum.entry(CategoryTables)
	for _, row := range rows {
		s, ok := r.schemaFor(row.Catalog, row.Schema)
		if !ok {
			r.dropped(CategoryTables, schema.JoinName(row.Catalog, row.Schema, row.Name))
			continue
		}
		if len(types) > 0 && !types[strings.ToUpper(row.Type)] {
			continue
		}
		if !adapter.MatchLike(r.opts.TableNamePattern, row.Name) {
			continue
		}
		full := schema.JoinName(s.Key.Catalog, s.Key.Name, row.Name)
		// With expansion the reducer decides; only explicit exclusions are
		// final here.
		if r.opts.expands() {
			if filter.Excludes(full) {
				continue
			}
		} else if !filter.Test(full) {
			continue
		}
		if _, ok := r.cat.LookupTable(s.ID, row.Name); ok {
			continue
		}
		t := r.cat.Table(r.cat.AddTable(s.ID, row.Name, strings.TrimSpace(row.Type)))
		t.Remarks = strings.TrimSpace(row.Remarks)
		t.Definition = r.definition(row.Definition)
		e.Retrieved++
	}
	return nil
}

// tableScoped reports whether a table scoped category can be retrieved at
// all.
func (r *retrieval) tableScoped(c Category) bool {
	if r.skip(c) {
		return false
	}
	if len(r.cat.Tables()) == 0 {
		r.skipped(c, "no tables retrieved")
		return false
	}
	return true
}

func (r *retrieval) columns(ctx context.Context) error {
	if !r.tableScoped(CategoryColumns) {
		return nil
	}
	rows, err := fetch(ctx, r, CategoryColumns, r.scopes(r.holdsTables),
		func(ctx context.Context, s adapter.Scope) ([]adapter.ColumnRow, error) {
			return r.src.Columns(ctx, s, r.opts.TableNamePattern)
		})
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Ordinal < rows[j].Ordinal })

	e := r.sum.entry(CategoryColumns)
	for _, row := range rows {
		t, ok := r.tableFor(row.Catalog, row.Schema, row.Table)
		if !ok {
			r.dropped(CategoryColumns, schema.JoinName(row.Schema, row.Table, row.Name))
			continue
		}
		if t.Column(row.Name) != nil {
			continue
		}
		t.AddColumn(schema.Column{
			Name:          row.Name,
			TypeName:      strings.TrimSpace(row.TypeName),
			Size:          row.Size,
			DecimalDigits: row.DecimalDigits,
			Nullable:      row.Nullable,
			Default:       strings.TrimSpace(row.Default),
			Remarks:       strings.TrimSpace(row.Remarks),
			PartOfPK:      row.PartOfPK,
			AutoIncrement: row.AutoIncrement,
			Generated:     row.Generated,
		})
		e.Retrieved++
	}
	return nil
}

func (r *retrieval) indexes(ctx context.Context) error {
	if !r.tableScoped(CategoryIndexes) {
		return nil
	}
	rows, err := fetch(ctx, r, CategoryIndexes, r.scopes(r.holdsTables),
		func(ctx context.Context, s adapter.Scope) ([]adapter.IndexRow, error) {
			return r.src.Indexes(ctx, s, r.opts.TableNamePattern)
		})
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Ordinal < rows[j].Ordinal })

	type key struct {
		table schema.TableID
		name  string
	}
	var order []key
	grouped := make(map[key]*schema.Index)
	for _, row := range rows {
		t, ok := r.tableFor(row.Catalog, row.Schema, row.Table)
		if !ok {
			r.dropped(CategoryIndexes, schema.JoinName(row.Schema, row.Table, row.Name))
			continue
		}
		k := key{t.ID, row.Name}
		idx, ok := grouped[k]
		if !ok {
			idx = &schema.Index{Name: row.Name, Unique: row.Unique, Primary: row.Primary}
			grouped[k] = idx
			order = append(order, k)
		}
		idx.Columns = append(idx.Columns, row.Column)
	}

	e := r.sum.entry(CategoryIndexes)
	for _, k := range order {
		t := r.cat.Table(k.table)
		idx := grouped[k]
		t.Indexes = append(t.Indexes, *idx)
		if idx.Primary {
			for _, name := range idx.Columns {
				if c := t.Column(name); c != nil {
					c.PartOfPK = true
				}
			}
		}
		e.Retrieved++
	}
	return nil
}

func (r *retrieval) foreignKeys(ctx context.Context) error {
	if !r.tableScoped(CategoryForeignKeys) {
		return nil
	}
	rows, err := fetch(ctx, r, CategoryForeignKeys, r.scopes(r.holdsTables),
		func(ctx context.Context, s adapter.Scope) ([]adapter.ForeignKeyRow, error) {
			return r.src.ForeignKeys(ctx, s, r.opts.TableNamePattern)
		})
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].KeySeq < rows[j].KeySeq })

	type key struct {
		child, parent schema.TableID
		name          string
	}
	var order []key
	grouped := make(map[key]*schema.ForeignKey)
	for _, row := range rows {
		child, ok := r.tableFor(row.FKCatalog, row.FKSchema, row.FKTable)
		if !ok {
			r.dropped(CategoryForeignKeys, row.Name)
			continue
		}
		parent, ok := r.tableFor(row.PKCatalog, row.PKSchema, row.PKTable)
		if !ok {
			r.log.Debug("dropping foreign key to a table outside the catalog",
				zap.String("foreign_key", row.Name),
				zap.String("child", child.FullName()),
				zap.String("parent", schema.JoinName(row.PKCatalog, row.PKSchema, row.PKTable)))
			continue
		}
		name := strings.TrimSpace(row.Name)
		if name == "" {
			name = "fk_" + child.Name + "_" + parent.Name
		}
		k := key{child.ID, parent.ID, name}
		fk, ok := grouped[k]
		if !ok {
			fk = &schema.ForeignKey{
				Name:       name,
				Child:      child.ID,
				Parent:     parent.ID,
				UpdateRule: strings.TrimSpace(row.UpdateRule),
				DeleteRule: strings.TrimSpace(row.DeleteRule),
			}
			grouped[k] = fk
			order = append(order, k)
		}
		fk.Columns = append(fk.Columns, schema.ColumnRef{Child: row.FKColumn, Parent: row.PKColumn})
	}

	e := r.sum.entry(CategoryForeignKeys)
	for _, k := range order {
		if _, err := r.cat.AddForeignKey(*grouped[k]); err != nil {
			return &RetrievalError{Category: CategoryForeignKeys, Strategy: e.Strategy, Err: err}
		}
		e.Retrieved++
	}
	return nil
}

func (r *retrieval) triggers(ctx context.Context) error {
	if !r.tableScoped(CategoryTriggers) {
		return nil
	}
	rows, err := fetch(ctx, r, CategoryTriggers, r.scopes(r.holdsTables),
		func(ctx context.Context, s adapter.Scope) ([]adapter.TriggerRow, error) {
			return r.src.Triggers(ctx, s, r.opts.TableNamePattern)
		})
	if err != nil {
		return err
	}

	e := r.sum.entry(CategoryTriggers)
	for _, row := range rows {
		t, ok := r.tableFor(row.Catalog, row.Schema, row.Table)
		if !ok {
			r.dropped(CategoryTriggers, row.Name)
			continue
		}
		// Some databases report one row per triggering event.
		merged := false
		for i := range t.Triggers {
			if tr := &t.Triggers[i]; tr.Name == row.Name {
				tr.Event += " OR " + row.Event
				merged = true
				break
			}
		}
		if merged {
			continue
		}
		t.Triggers = append(t.Triggers, schema.Trigger{
			Name:        row.Name,
			Event:       strings.TrimSpace(row.Event),
			Timing:      strings.TrimSpace(row.Timing),
			Orientation: strings.TrimSpace(row.Orientation),
			Action:      strings.TrimSpace(row.Action),
		})
		e.Retrieved++
	}
	return nil
}

func (r *retrieval) routineTypes() map[schema.RoutineType]bool {
	types := map[schema.RoutineType]bool{}
	for _, t := range r.opts.RoutineTypes {
		types[schema.ParseRoutineType(t)] = true
	}
	if len(types) == 0 {
		types[schema.RoutineProcedure] = true
		types[schema.RoutineFunction] = true
	}
	return types
}

func (r *retrieval) routines(ctx context.Context) error {
	if r.skip(CategoryRoutines) {
		return nil
	}
	rows, err := fetch(ctx, r, CategoryRoutines, r.scopes(nil),
		func(ctx context.Context, s adapter.Scope) ([]adapter.RoutineRow, error) {
			return r.src.Routines(ctx, s, "")
		})
	if err != nil {
		return err
	}

	types := r.routineTypes()
	filter := r.opts.Rules.Filter(inclusion.KindRoutine)
	e := r.sum.entry(CategoryRoutines)
	for _, row := range rows {
		s, ok := r.schemaFor(row.Catalog, row.Schema)
		if !ok {
			r.dropped(CategoryRoutines, row.Name)
			continue
		}
		typ := schema.ParseRoutineType(row.Type)
		if !types[typ] {
			continue
		}
		if !filter.Test(schema.JoinName(s.Key.Catalog, s.Key.Name, row.Name)) {
			continue
		}
		specific := strings.TrimSpace(row.SpecificName)
		if specific == "" {
			specific = row.Name
		}
		if _, ok := r.cat.LookupRoutine(s.ID, specific); ok {
			continue
		}
		rt := r.cat.Routine(r.cat.AddRoutine(s.ID, row.Name, specific, typ))
		rt.ReturnType = strings.TrimSpace(row.ReturnType)
		rt.Remarks = strings.TrimSpace(row.Remarks)
		rt.Definition = r.definition(row.Definition)
		e.Retrieved++
	}
	return nil
}

func (r *retrieval) routineColumns(ctx context.Context) error {
	if r.skip(CategoryRoutineColumns) {
		return nil
	}
	if len(r.cat.Routines()) == 0 {
		r.skipped(CategoryRoutineColumns, "no routines retrieved")
		return nil
	}
	rows, err := fetch(ctx, r, CategoryRoutineColumns, r.scopes(r.holdsRoutines),
		func(ctx context.Context, s adapter.Scope) ([]adapter.RoutineColumnRow, error) {
			return r.src.RoutineColumns(ctx, s, "")
		})
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Ordinal < rows[j].Ordinal })

	e := r.sum.entry(CategoryRoutineColumns)
	for _, row := range rows {
		s, ok := r.schemaFor(row.Catalog, row.Schema)
		if !ok {
			r.dropped(CategoryRoutineColumns, row.RoutineName)
			continue
		}
		var targets []*schema.Routine
		if specific := strings.TrimSpace(row.SpecificName); specific != "" {
			if id, ok := r.cat.LookupRoutine(s.ID, specific); ok {
				targets = append(targets, r.cat.Routine(id))
			}
		} else {
			targets = r.cat.RoutinesNamed(s.ID, row.RoutineName)
		}
		if len(targets) == 0 {
			r.dropped(CategoryRoutineColumns, row.RoutineName)
			continue
		}
		for _, rt := range targets {
			rt.AddColumn(schema.RoutineColumn{
				Name:      strings.TrimSpace(row.Name),
				Kind:      schema.ParseParameterKind(row.Kind),
				TypeName:  strings.TrimSpace(row.TypeName),
				Size:      row.Size,
				Precision: row.Precision,
				Nullable:  row.Nullable,
				Remarks:   strings.TrimSpace(row.Remarks),
			})
			e.Retrieved++
		}
	}
	return nil
}

func (r *retrieval) sequences(ctx context.Context) error {
	if r.skip(CategorySequences) {
		return nil
	}
	rows, err := fetch(ctx, r, CategorySequences, r.scopes(nil),
		func(ctx context.Context, s adapter.Scope) ([]adapter.SequenceRow, error) {
			return r.src.Sequences(ctx, s, "")
		})
	if err != nil {
		return err
	}

	filter := r.opts.Rules.Filter(inclusion.KindSequence)
	e := r.sum.entry(CategorySequences)
	for _, row := range rows {
		s, ok := r.schemaFor(row.Catalog, row.Schema)
		if !ok {
			r.dropped(CategorySequences, row.Name)
			continue
		}
		if !filter.Test(schema.JoinName(s.Key.Catalog, s.Key.Name, row.Name)) {
			continue
		}
		r.cat.AddSequence(s.ID, schema.Sequence{
			Name:      row.Name,
			Increment: row.Increment,
			Minimum:   strings.TrimSpace(row.Minimum),
			Maximum:   strings.TrimSpace(row.Maximum),
			Cycle:     row.Cycle,
			Remarks:   strings.TrimSpace(row.Remarks),
		})
		e.Retrieved++
	}
	return nil
}

func (r *retrieval) synonyms(ctx context.Context) error {
	if r.skip(CategorySynonyms) {
		return nil
	}
	rows, err := fetch(ctx, r, CategorySynonyms, r.scopes(nil),
		func(ctx context.Context, s adapter.Scope) ([]adapter.SynonymRow, error) {
			return r.src.Synonyms(ctx, s, "")
		})
	if err != nil {
		return err
	}

	filter := r.opts.Rules.Filter(inclusion.KindSynonym)
	e := r.sum.entry(CategorySynonyms)
	for _, row := range rows {
		s, ok := r.schemaFor(row.Catalog, row.Schema)
		if !ok {
			r.dropped(CategorySynonyms, row.Name)
			continue
		}
		if !filter.Test(schema.JoinName(s.Key.Catalog, s.Key.Name, row.Name)) {
			continue
		}
		r.cat.AddSynonym(s.ID, schema.Synonym{
			Name:       row.Name,
			RefCatalog: strings.TrimSpace(row.RefCatalog),
			RefSchema:  strings.TrimSpace(row.RefSchema),
			RefName:    strings.TrimSpace(row.RefName),
			Remarks:    strings.TrimSpace(row.Remarks),
		})
		e.Retrieved++
	}
	return nil
}

func (r *retrieval) rowCounts(ctx context.Context) error {
	if !r.opts.wantsRowCounts() {
		r.sum.entry(categoryRowCounts).Skipped = true
		return nil
	}
	e := r.sum.entry(categoryRowCounts)
	if r.counter == nil {
		e.Unsupported = true
		r.log.Warn("row counts requested but the source cannot count rows")
		return nil
	}
	for _, t := range r.cat.Tables() {
		if t.IsView() {
			continue
		}
		s := r.cat.Schema(t.Schema)
		e.Calls++
		n, err := r.counter.CountRows(ctx, s.Key.Catalog, s.Key.Name, t.Name)
		if errors.Is(err, adapter.ErrUnsupported) {
			e.Unsupported = true
			r.log.Warn("row counts not supported", zap.Error(err))
			return nil
		}
		if err != nil {
			return &RetrievalError{Category: categoryRowCounts, Err: err}
		}
		t.SetRowCount(n)
		e.Retrieved++
	}
	return nil
}
