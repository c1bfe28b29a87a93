// Package grep keeps the tables, routines and synonyms whose contents match
// a pattern. It runs after the reducer and only ever removes entities.
package grep

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sadopc/dbcrawl/internal/inclusion"
	"github.com/sadopc/dbcrawl/internal/schema"
)

// Options configures the grep pass. A nil rule is not applied.
type Options struct {
	// Columns is tested against column full names.
	Columns *inclusion.Rule `yaml:"columns,omitempty"`
	// RoutineColumns is tested against routine column full names.
	RoutineColumns *inclusion.Rule `yaml:"routine_columns,omitempty"`
	// Definitions is tested against remarks, view and routine definitions
	// and trigger actions.
	Definitions *inclusion.Rule `yaml:"definitions,omitempty"`

	InvertMatch  bool `yaml:"invert_match,omitempty"`
	OnlyMatching bool `yaml:"only_matching,omitempty"`
}

// IsSet reports whether any grep rule is configured.
func (o Options) IsSet() bool {
	return o.Columns != nil || o.RoutineColumns != nil || o.Definitions != nil
}

// Result counts what the pass removed.
type Result struct {
	Tables         int
	Columns        int
	Routines       int
	RoutineColumns int
	Synonyms       int
}

// Apply removes every entity with no qualifying element. An element
// qualifies when it matches its rule, or under InvertMatch when it does not.
func Apply(cat *schema.Catalog, opts Options, log *zap.Logger) Result {
	var res Result
	if !opts.IsSet() {
		return res
	}
	if log == nil {
		log = zap.NewNop()
	}
	g := grepper{opts: opts}

	if opts.Columns != nil || opts.Definitions != nil {
		for _, t := range cat.Tables() {
			if !g.tableQualifies(t) {
				log.Debug("grep removing table", zap.String("table", t.FullName()))
				cat.RemoveTable(t.ID)
				res.Tables++
				continue
			}
			if opts.OnlyMatching {
				res.Columns += t.RetainColumns(g.columnQualifies)
			}
		}
	}

	if opts.RoutineColumns != nil || opts.Definitions != nil {
		for _, r := range cat.Routines() {
			if !g.routineQualifies(r) {
				log.Debug("grep removing routine", zap.String("routine", r.FullName()))
				cat.RemoveRoutine(r.ID)
				res.Routines++
				continue
			}
			if opts.OnlyMatching {
				res.RoutineColumns += r.RetainColumns(g.routineColumnQualifies)
			}
		}
	}

	if opts.Definitions != nil {
		for _, s := range cat.Synonyms() {
			if !g.any(opts.Definitions, s.Remarks, s.ReferencedName()) {
				cat.RemoveSynonym(s.ID)
				res.Synonyms++
			}
		}
	}

	log.Debug("grep done",
		zap.Int("tables_removed", res.Tables),
		zap.Int("routines_removed", res.Routines),
		zap.Int("synonyms_removed", res.Synonyms))
	return res
}

type grepper struct {
	opts Options
}

// qualifies tests one element. Blank texts are never candidates.
func (g grepper) qualifies(rule *inclusion.Rule, text string) (candidate, ok bool) {
	if rule == nil {
		return false, false
	}
	text = oneLine(text)
	if text == "" {
		return false, false
	}
	return true, rule.Test(text) != g.opts.InvertMatch
}

func (g grepper) any(rule *inclusion.Rule, texts ...string) bool {
	for _, text := range texts {
		if _, ok := g.qualifies(rule, text); ok {
			return true
		}
	}
	return false
}

func (g grepper) columnQualifies(c *schema.Column) bool {
	if _, ok := g.qualifies(g.opts.Columns, c.FullName()); ok {
		return true
	}
	_, ok := g.qualifies(g.opts.Definitions, c.Remarks)
	return ok
}

func (g grepper) tableQualifies(t *schema.Table) bool {
	for _, c := range t.Columns {
		if g.columnQualifies(c) {
			return true
		}
	}
	if g.any(g.opts.Definitions, t.Remarks, t.Definition) {
		return true
	}
	for _, tr := range t.Triggers {
		if g.any(g.opts.Definitions, tr.Action) {
			return true
		}
	}
	return false
}

func (g grepper) routineColumnQualifies(c *schema.RoutineColumn) bool {
	if _, ok := g.qualifies(g.opts.RoutineColumns, c.FullName()); ok {
		return true
	}
	_, ok := g.qualifies(g.opts.Definitions, c.Remarks)
	return ok
}

func (g grepper) routineQualifies(r *schema.Routine) bool {
	for _, c := range r.Columns {
		if g.routineColumnQualifies(c) {
			return true
		}
	}
	return g.any(g.opts.Definitions, r.Remarks, r.Definition)
}

// oneLine collapses whitespace so that a pattern like .*foo.* can match
// multi-line definitions.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
