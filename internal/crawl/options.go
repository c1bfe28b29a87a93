package crawl

import (
	"fmt"
	"strings"

	"github.com/sadopc/dbcrawl/internal/grep"
	"github.com/sadopc/dbcrawl/internal/inclusion"
	"github.com/sadopc/dbcrawl/internal/reduce"
)

// InfoLevel is a preset enabling metadata categories.
type InfoLevel int

const (
	InfoMinimum InfoLevel = iota
	InfoStandard
	InfoDetailed
	InfoMaximum
)

var infoLevelNames = []string{"minimum", "standard", "detailed", "maximum"}

func (l InfoLevel) String() string {
	if l < InfoMinimum || l > InfoMaximum {
		return fmt.Sprintf("InfoLevel(%d)", int(l))
	}
	return infoLevelNames[l]
}

// ParseInfoLevel parses an info level name.
func ParseInfoLevel(s string) (InfoLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range infoLevelNames {
		if n == name {
			return InfoLevel(i), nil
		}
	}
	return InfoStandard, fmt.Errorf("unknown info level %q (want one of %s)", s, strings.Join(infoLevelNames, ", "))
}

func (l InfoLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *InfoLevel) UnmarshalText(b []byte) error {
	v, err := ParseInfoLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Enables reports whether the level retrieves a category.
func (l InfoLevel) Enables(c Category) bool {
	switch c {
	case CategoryTables, CategoryRoutines:
		return true
	case CategoryColumns, CategoryIndexes, CategoryForeignKeys, CategoryRoutineColumns:
		return l >= InfoStandard
	case CategoryTriggers, CategorySequences, CategorySynonyms:
		return l >= InfoDetailed
	}
	return false
}

// Definitions reports whether view and routine definitions are kept.
func (l InfoLevel) Definitions() bool { return l >= InfoMaximum }

// Rules holds the configured inclusion rule per kind. A nil rule takes the
// kind's default stance.
type Rules struct {
	Schemas        *inclusion.Rule `yaml:"schemas,omitempty"`
	Tables         *inclusion.Rule `yaml:"tables,omitempty"`
	Columns        *inclusion.Rule `yaml:"columns,omitempty"`
	Routines       *inclusion.Rule `yaml:"routines,omitempty"`
	RoutineColumns *inclusion.Rule `yaml:"routine_columns,omitempty"`
	Sequences      *inclusion.Rule `yaml:"sequences,omitempty"`
	Synonyms       *inclusion.Rule `yaml:"synonyms,omitempty"`
}

// Filter returns the filter for one kind.
func (r Rules) Filter(k inclusion.Kind) inclusion.Filter {
	var rule *inclusion.Rule
	switch k {
	case inclusion.KindSchema:
		rule = r.Schemas
	case inclusion.KindTable:
		rule = r.Tables
	case inclusion.KindColumn:
		rule = r.Columns
	case inclusion.KindRoutine:
		rule = r.Routines
	case inclusion.KindRoutineColumn:
		rule = r.RoutineColumns
	case inclusion.KindSequence:
		rule = r.Sequences
	case inclusion.KindSynonym:
		rule = r.Synonyms
	}
	return inclusion.NewFilter(k, rule)
}

// Options configures a crawl.
type Options struct {
	Rules Rules

	// TableTypes restricts tables by type; empty means every type.
	TableTypes []string
	// RoutineTypes restricts routines by type; empty means procedures and
	// functions.
	RoutineTypes []string
	// TableNamePattern is a LIKE pattern passed to table scoped calls.
	TableNamePattern string

	InfoLevel  InfoLevel
	Strategies Strategies
	Grep       grep.Options

	ChildDepth    int
	ParentDepth   int
	NoEmptyTables bool
	LoadRowCounts bool
}

// DefaultOptions crawls tables and their structure at the standard info
// level with the metadata strategy throughout.
func DefaultOptions() Options {
	return Options{
		InfoLevel:  InfoStandard,
		Strategies: Strategies{},
	}
}

// ReduceOptions derives the reducer configuration.
func (o Options) ReduceOptions() reduce.Options {
	return reduce.Options{
		Schemas:        o.Rules.Filter(inclusion.KindSchema),
		Tables:         o.Rules.Filter(inclusion.KindTable),
		Columns:        o.Rules.Filter(inclusion.KindColumn),
		Routines:       o.Rules.Filter(inclusion.KindRoutine),
		RoutineColumns: o.Rules.Filter(inclusion.KindRoutineColumn),
		Sequences:      o.Rules.Filter(inclusion.KindSequence),
		Synonyms:       o.Rules.Filter(inclusion.KindSynonym),
		ChildDepth:     o.ChildDepth,
		ParentDepth:    o.ParentDepth,
		NoEmptyTables:  o.NoEmptyTables,
	}
}

// enabled reports whether a category is both turned on by the info level
// and not excluded outright by its rule.
func (o Options) enabled(c Category) (bool, string) {
	if !o.InfoLevel.Enables(c) {
		return false, "info level " + o.InfoLevel.String()
	}
	var kind inclusion.Kind
	switch c {
	case CategoryRoutines:
		kind = inclusion.KindRoutine
	case CategorySequences:
		kind = inclusion.KindSequence
	case CategorySynonyms:
		kind = inclusion.KindSynonym
	case CategoryTables:
		kind = inclusion.KindTable
	default:
		return true, ""
	}
	if o.Rules.Filter(kind).IsExcludeAll() {
		return false, kind.String() + " rule excludes everything"
	}
	return true, ""
}

func (o Options) wantsRowCounts() bool { return o.LoadRowCounts || o.NoEmptyTables }

func (o Options) expands() bool { return o.ChildDepth > 0 || o.ParentDepth > 0 }
