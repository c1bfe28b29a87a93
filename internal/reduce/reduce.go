// Package reduce narrows a populated catalog to the objects a crawl asked
// for. Tables are selected by rule and then expanded across foreign keys up
// to a configured depth; everything else is selected by rule alone.
package reduce

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sadopc/dbcrawl/internal/inclusion"
	"github.com/sadopc/dbcrawl/internal/schema"
)

// Options configures a reducer pass.
type Options struct {
	Schemas        inclusion.Filter
	Tables         inclusion.Filter
	Columns        inclusion.Filter
	Routines       inclusion.Filter
	RoutineColumns inclusion.Filter
	Sequences      inclusion.Filter
	Synonyms       inclusion.Filter

	// ChildDepth adds tables that reference the selected tables, up to
	// this many foreign key hops. ParentDepth adds the tables they
	// reference.
	ChildDepth  int
	ParentDepth int

	// NoEmptyTables drops tables whose row count is known to be zero.
	NoEmptyTables bool
}

// DefaultOptions returns options with every filter at its default stance and
// no expansion.
func DefaultOptions() Options {
	return Options{
		Schemas:        inclusion.NewFilter(inclusion.KindSchema, nil),
		Tables:         inclusion.NewFilter(inclusion.KindTable, nil),
		Columns:        inclusion.NewFilter(inclusion.KindColumn, nil),
		Routines:       inclusion.NewFilter(inclusion.KindRoutine, nil),
		RoutineColumns: inclusion.NewFilter(inclusion.KindRoutineColumn, nil),
		Sequences:      inclusion.NewFilter(inclusion.KindSequence, nil),
		Synonyms:       inclusion.NewFilter(inclusion.KindSynonym, nil),
	}
}

// Result counts what a pass removed, including entities removed along with
// their owners.
type Result struct {
	Schemas        int
	Tables         int
	Columns        int
	ForeignKeys    int
	Routines       int
	RoutineColumns int
	Sequences      int
	Synonyms       int
}

func diff(before, after schema.Counts) Result {
	return Result{
		Schemas:        before.Schemas - after.Schemas,
		Tables:         before.Tables - after.Tables,
		Columns:        before.Columns - after.Columns,
		ForeignKeys:    before.ForeignKeys - after.ForeignKeys,
		Routines:       before.Routines - after.Routines,
		RoutineColumns: before.RoutineColumns - after.RoutineColumns,
		Sequences:      before.Sequences - after.Sequences,
		Synonyms:       before.Synonyms - after.Synonyms,
	}
}

// Reduce removes everything the options do not select. It is safe to run
// more than once; a second pass with the same options removes nothing.
func Reduce(cat *schema.Catalog, opts Options, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	before := cat.Counts()

	reduceSchemas(cat, opts, log)
	reduceTables(cat, opts, log)

	reduceNamed(cat.Routines(), opts.Routines, "routines", log, func(r *schema.Routine) { cat.RemoveRoutine(r.ID) })
	for _, r := range cat.Routines() {
		r.RetainColumns(func(c *schema.RoutineColumn) bool { return opts.RoutineColumns.Include(c) })
	}
	reduceNamed(cat.Sequences(), opts.Sequences, "sequences", log, func(s *schema.Sequence) { cat.RemoveSequence(s.ID) })
	reduceNamed(cat.Synonyms(), opts.Synonyms, "synonyms", log, func(s *schema.Synonym) { cat.RemoveSynonym(s.ID) })

	if opts.NoEmptyTables {
		for _, t := range cat.Tables() {
			if n, ok := t.RowCount(); ok && n == 0 {
				log.Debug("removing empty table", zap.String("table", t.FullName()))
				cat.RemoveTable(t.ID)
			}
		}
	}

	if err := cat.Verify(); err != nil {
		return Result{}, fmt.Errorf("reduce: %w", err)
	}

	res := diff(before, cat.Counts())
	log.Debug("reduced catalog",
		zap.Int("schemas", res.Schemas),
		zap.Int("tables", res.Tables),
		zap.Int("columns", res.Columns),
		zap.Int("foreign_keys", res.ForeignKeys),
		zap.Int("routines", res.Routines))
	return res, nil
}

func reduceSchemas(cat *schema.Catalog, opts Options, log *zap.Logger) {
	schemas := cat.Schemas()
	var kept int
	for _, s := range schemas {
		if opts.Schemas.Include(s) {
			kept++
			continue
		}
		log.Debug("removing schema", zap.String("schema", s.FullName()))
		cat.RemoveSchema(s.ID)
	}
	warnIfAmbiguous(opts.Schemas, "schemas", kept, names(schemas), log)
}

func reduceTables(cat *schema.Catalog, opts Options, log *zap.Logger) {
	tables := cat.Tables()

	keep := make(map[schema.TableID]bool)
	var base []*schema.Table
	for _, t := range tables {
		if opts.Tables.Include(t) {
			keep[t.ID] = true
			base = append(base, t)
		}
	}
	warnIfAmbiguous(opts.Tables, "tables", len(base), names(tables), log)

	for _, t := range tables {
		t.RetainColumns(func(c *schema.Column) bool { return opts.Columns.Include(c) })
	}

	if opts.ChildDepth > 0 {
		expand(cat, base, opts.ChildDepth, keep, opts.Tables, log, func(t *schema.Table) []schema.TableID {
			var ids []schema.TableID
			for _, fk := range cat.ExportedKeys(t) {
				ids = append(ids, fk.Child)
			}
			return ids
		})
	}
	if opts.ParentDepth > 0 {
		expand(cat, base, opts.ParentDepth, keep, opts.Tables, log, func(t *schema.Table) []schema.TableID {
			var ids []schema.TableID
			for _, fk := range cat.ImportedKeys(t) {
				ids = append(ids, fk.Parent)
			}
			return ids
		})
	}

	for _, t := range tables {
		if !keep[t.ID] {
			cat.RemoveTable(t.ID)
		}
	}
}

// expand walks breadth first from base, adding up to depth hops of
// neighbours to keep. Tables the rule explicitly excludes are never added.
func expand(cat *schema.Catalog, base []*schema.Table, depth int, keep map[schema.TableID]bool,
	tables inclusion.Filter, log *zap.Logger, next func(*schema.Table) []schema.TableID) {
	frontier := base
	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		var added []*schema.Table
		for _, t := range frontier {
			for _, id := range next(t) {
				if keep[id] {
					continue
				}
				n := cat.Table(id)
				if n == nil || tables.Excludes(n.FullName()) {
					continue
				}
				keep[id] = true
				added = append(added, n)
				log.Debug("adding related table",
					zap.String("table", n.FullName()),
					zap.String("via", t.FullName()),
					zap.Int("hop", hop))
			}
		}
		frontier = added
	}
}

func reduceNamed[T inclusion.Named](items []T, f inclusion.Filter, what string, log *zap.Logger, remove func(T)) {
	var kept int
	for _, it := range items {
		if f.Include(it) {
			kept++
			continue
		}
		remove(it)
	}
	warnIfAmbiguous(f, what, kept, names(items), log)
}

// warnIfAmbiguous logs when a configured include pattern matched none of
// the candidates it was tested against.
func warnIfAmbiguous(f inclusion.Filter, what string, kept int, candidates []string, log *zap.Logger) {
	r := f.Rule()
	if r == nil || r.IncludePattern() == "" || kept > 0 || len(candidates) == 0 {
		return
	}
	log.Warn("inclusion rule matched nothing",
		zap.String("kind", what),
		zap.String("rule", r.String()),
		zap.Strings("did_you_mean", inclusion.Suggest(r.IncludePattern(), candidates, 3)))
}

func names[T inclusion.Named](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.FullName()
	}
	return out
}
