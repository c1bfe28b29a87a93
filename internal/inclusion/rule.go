// Package inclusion decides which named database objects take part in a
// crawl. A Rule pairs an optional include pattern with an optional exclude
// pattern; a Filter adds the default stance of an object kind for when no
// rule was configured at all.
package inclusion

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// matchEverything is the exclude pattern recognised as "exclude all".
const matchEverything = ".*"

// Rule is an immutable include/exclude pattern pair. The zero value includes
// every name.
type Rule struct {
	include    *regexp.Regexp
	exclude    *regexp.Regexp
	includeSrc string
	excludeSrc string
}

// New compiles a rule. An empty pattern means the pattern is absent.
// Patterns match whole names, never substrings.
func New(include, exclude string) (Rule, error) {
	var r Rule
	if include != "" {
		re, err := compile(include)
		if err != nil {
			return Rule{}, fmt.Errorf("include pattern %q: %w", include, err)
		}
		r.include = re
		r.includeSrc = include
	}
	if exclude != "" {
		re, err := compile(exclude)
		if err != nil {
			return Rule{}, fmt.Errorf("exclude pattern %q: %w", exclude, err)
		}
		r.exclude = re
		r.excludeSrc = exclude
	}
	return r, nil
}

// MustNew is like New but panics on an invalid pattern.
func MustNew(include, exclude string) Rule {
	r, err := New(include, exclude)
	if err != nil {
		panic(err)
	}
	return r
}

// IncludeAll returns a rule that includes every name.
func IncludeAll() Rule { return Rule{} }

// ExcludeAll returns the sentinel rule that excludes every name. Retrievers
// check IsExcludeAll before issuing any query.
func ExcludeAll() Rule { return MustNew("", matchEverything) }

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

// Test reports whether name is included: it matches the include pattern
// (when there is one) and does not match the exclude pattern.
func (r Rule) Test(name string) bool {
	if r.include != nil && !r.include.MatchString(name) {
		return false
	}
	return !r.Excludes(name)
}

// Excludes reports whether name is explicitly excluded by the exclude
// pattern, regardless of the include pattern.
func (r Rule) Excludes(name string) bool {
	return r.exclude != nil && r.exclude.MatchString(name)
}

// IsExcludeAll reports whether the rule can never include anything.
func (r Rule) IsExcludeAll() bool {
	return r.include == nil && r.excludeSrc == matchEverything
}

// IsIncludeAll reports whether the rule has neither pattern.
func (r Rule) IsIncludeAll() bool {
	return r.include == nil && r.exclude == nil
}

// IncludePattern returns the include pattern as configured, or "".
func (r Rule) IncludePattern() string { return r.includeSrc }

// ExcludePattern returns the exclude pattern as configured, or "".
func (r Rule) ExcludePattern() string { return r.excludeSrc }

func (r Rule) String() string {
	var parts []string
	if r.includeSrc != "" {
		parts = append(parts, "+/"+r.includeSrc+"/")
	}
	if r.excludeSrc != "" {
		parts = append(parts, "-/"+r.excludeSrc+"/")
	}
	if len(parts) == 0 {
		return "+/.*/"
	}
	return strings.Join(parts, " ")
}

// ruleYAML is the mapping form of a rule in configuration files.
type ruleYAML struct {
	Include string `yaml:"include,omitempty"`
	Exclude string `yaml:"exclude,omitempty"`
}

// UnmarshalYAML accepts either a mapping with include/exclude keys or a
// plain scalar, which is taken as the include pattern.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var raw ruleYAML
	switch node.Kind {
	case yaml.ScalarNode:
		raw.Include = node.Value
	case yaml.MappingNode:
		if err := node.Decode(&raw); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d: inclusion rule must be a string or a mapping", node.Line)
	}
	rule, err := New(raw.Include, raw.Exclude)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*r = rule
	return nil
}

// MarshalYAML writes the mapping form.
func (r Rule) MarshalYAML() (any, error) {
	return ruleYAML{Include: r.includeSrc, Exclude: r.excludeSrc}, nil
}
