package crawl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sadopc/dbcrawl/internal/queries"
)

// Category is a kind of metadata retrieved in one step.
type Category string

const (
	CategoryTables         Category = "tables"
	CategoryColumns        Category = "columns"
	CategoryIndexes        Category = "indexes"
	CategoryForeignKeys    Category = "foreign_keys"
	CategoryTriggers       Category = "triggers"
	CategoryRoutines       Category = "routines"
	CategoryRoutineColumns Category = "routine_columns"
	CategorySequences      Category = "sequences"
	CategorySynonyms       Category = "synonyms"

	// Reported in the summary but without a strategy.
	categorySchemas   Category = "schemas"
	categoryRowCounts Category = "row_counts"
)

// Categories lists the categories in retrieval order.
var Categories = []Category{
	CategoryTables,
	CategoryColumns,
	CategoryIndexes,
	CategoryForeignKeys,
	CategoryTriggers,
	CategoryRoutines,
	CategoryRoutineColumns,
	CategorySequences,
	CategorySynonyms,
}

var queryKeys = map[Category]queries.Key{
	CategoryTables:         queries.Tables,
	CategoryColumns:        queries.Columns,
	CategoryIndexes:        queries.Indexes,
	CategoryForeignKeys:    queries.ForeignKeys,
	CategoryTriggers:       queries.Triggers,
	CategoryRoutines:       queries.Routines,
	CategoryRoutineColumns: queries.RoutineColumns,
	CategorySequences:      queries.Sequences,
	CategorySynonyms:       queries.Synonyms,
}

// QueryKey returns the named query used for the category.
func (c Category) QueryKey() queries.Key { return queryKeys[c] }

func parseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := queryKeys[c]; !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Strategy selects how a category is retrieved.
type Strategy string

const (
	// DataDictionaryAll runs one named SQL query for the whole database.
	DataDictionaryAll Strategy = "data_dictionary_all"
	// MetadataAll makes one metadata call for the whole database.
	MetadataAll Strategy = "metadata_all"
	// Metadata makes one metadata call per schema.
	Metadata Strategy = "metadata"
)

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case DataDictionaryAll, MetadataAll, Metadata:
		return st, nil
	}
	return "", fmt.Errorf("unknown retrieval strategy %q", s)
}

// Strategies assigns a strategy per category. Categories without an entry
// use Metadata.
type Strategies map[Category]Strategy

// ParseStrategies converts a category to strategy name mapping, as found in
// configuration files.
func ParseStrategies(m map[string]string) (Strategies, error) {
	out := make(Strategies, len(m))
	for k, v := range m {
		c, err := parseCategory(k)
		if err != nil {
			return nil, &ConfigurationError{Msg: err.Error()}
		}
		st, err := ParseStrategy(v)
		if err != nil {
			return nil, &ConfigurationError{Category: c, Msg: err.Error()}
		}
		out[c] = st
	}
	return out, nil
}

// For returns the strategy for a category.
func (s Strategies) For(c Category) Strategy {
	if st, ok := s[c]; ok && st != "" {
		return st
	}
	return Metadata
}

// Validate checks that every category using the data dictionary has a
// query registered.
func (s Strategies) Validate(reg *queries.Registry) error {
	cats := make([]string, 0, len(s))
	for c := range s {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, name := range cats {
		c := Category(name)
		switch s.For(c) {
		case DataDictionaryAll:
			if !reg.Has(c.QueryKey()) {
				return &ConfigurationError{
					Category: c,
					Msg:      fmt.Sprintf("strategy %s needs a %s query, none is registered", DataDictionaryAll, c.QueryKey()),
				}
			}
		case MetadataAll, Metadata:
		default:
			return &ConfigurationError{Category: c, Msg: fmt.Sprintf("unknown retrieval strategy %q", s[c])}
		}
	}
	return nil
}

// only returns the subset of s for the given categories.
func (s Strategies) only(cats []Category) Strategies {
	out := make(Strategies, len(cats))
	for _, c := range cats {
		if st, ok := s[c]; ok {
			out[c] = st
		}
	}
	return out
}
