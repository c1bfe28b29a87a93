package inclusion

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Kind identifies the type of object a filter applies to.
type Kind int

const (
	KindSchema Kind = iota
	KindTable
	KindColumn
	KindRoutine
	KindRoutineColumn
	KindSequence
	KindSynonym
)

var kindNames = map[Kind]string{
	KindSchema:        "schema",
	KindTable:         "table",
	KindColumn:        "column",
	KindRoutine:       "routine",
	KindRoutineColumn: "routine column",
	KindSequence:      "sequence",
	KindSynonym:       "synonym",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// DefaultIncludes reports the stance a kind takes when no rule is
// configured for it. Structure that is cheap and expected (schemas, tables,
// columns, routine columns) is included; routines, sequences and synonyms
// must be asked for.
func DefaultIncludes(k Kind) bool {
	switch k {
	case KindRoutine, KindSequence, KindSynonym:
		return false
	default:
		return true
	}
}

// Named is anything that can be tested by its full name.
type Named interface {
	FullName() string
}

// Filter applies a rule to one kind of object. A nil rule means the rule was
// not configured and the kind's default stance applies.
type Filter struct {
	kind Kind
	rule *Rule
}

// NewFilter returns a filter for kind. Pass nil when the user configured
// nothing for this kind.
func NewFilter(kind Kind, rule *Rule) Filter {
	return Filter{kind: kind, rule: rule}
}

// Kind returns the object kind the filter applies to.
func (f Filter) Kind() Kind { return f.kind }

// Rule returns the configured rule, or nil.
func (f Filter) Rule() *Rule { return f.rule }

// Test reports whether an object with the given full name is included.
func (f Filter) Test(fullName string) bool {
	if f.rule == nil {
		return DefaultIncludes(f.kind)
	}
	return f.rule.Test(fullName)
}

// Include is Test over a typed entity.
func (f Filter) Include(n Named) bool {
	return f.Test(n.FullName())
}

// Excludes reports whether the name is explicitly excluded. An unconfigured
// filter never explicitly excludes anything.
func (f Filter) Excludes(fullName string) bool {
	return f.rule != nil && f.rule.Excludes(fullName)
}

// IsExcludeAll reports whether nothing of this kind can pass, in which case
// retrieval for the kind is skipped.
func (f Filter) IsExcludeAll() bool {
	if f.rule == nil {
		return !DefaultIncludes(f.kind)
	}
	return f.rule.IsExcludeAll()
}

func (f Filter) String() string {
	if f.rule == nil {
		if DefaultIncludes(f.kind) {
			return f.kind.String() + ": include by default"
		}
		return f.kind.String() + ": exclude by default"
	}
	return f.kind.String() + ": " + f.rule.String()
}

// Suggest returns up to n names from candidates that fuzzily resemble the
// pattern, best match first. It is used to explain a rule that matched
// nothing.
func Suggest(pattern string, candidates []string, n int) []string {
	needle := literalPart(pattern)
	if needle == "" || len(candidates) == 0 || n <= 0 {
		return nil
	}
	matches := fuzzy.Find(needle, candidates)
	if len(matches) > n {
		matches = matches[:n]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

// literalPart drops regular expression syntax from a pattern, leaving the
// characters a person would have typed as part of a name.
func literalPart(pattern string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`.*+?()[]{}|^$\`, r) {
			return -1
		}
		return r
	}, pattern)
}
