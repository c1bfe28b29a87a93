// Package queries holds the named SQL templates used by the data dictionary
// retrieval strategy. Templates take the named parameters :catalog and
// :schema, which are empty when the whole database is crawled.
package queries

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Key names a data dictionary query.
type Key string

const (
	Tables         Key = "TABLES"
	Columns        Key = "COLUMNS"
	Indexes        Key = "INDEXES"
	ForeignKeys    Key = "FOREIGN_KEYS"
	Triggers       Key = "TRIGGERS"
	Routines       Key = "ROUTINES"
	RoutineColumns Key = "ROUTINE_COLUMNS"
	Sequences      Key = "SEQUENCES"
	Synonyms       Key = "SYNONYMS"
)

// Keys lists every known query key in retrieval order.
var Keys = []Key{Tables, Columns, Indexes, ForeignKeys, Triggers, Routines, RoutineColumns, Sequences, Synonyms}

func validKey(k Key) bool {
	for _, known := range Keys {
		if k == known {
			return true
		}
	}
	return false
}

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Registry maps query keys to SQL text.
type Registry struct {
	name    string
	queries map[Key]string
}

// New returns an empty registry.
func New(name string) *Registry {
	return &Registry{name: name, queries: make(map[Key]string)}
}

// Name describes where the queries came from.
func (r *Registry) Name() string { return r.name }

// Has reports whether a non-blank query is registered under key.
func (r *Registry) Has(key Key) bool {
	if r == nil {
		return false
	}
	return strings.TrimSpace(r.queries[key]) != ""
}

// Get returns the query registered under key.
func (r *Registry) Get(key Key) (string, bool) {
	if !r.Has(key) {
		return "", false
	}
	return r.queries[key], true
}

// Register stores a query, replacing any previous one for the key.
func (r *Registry) Register(key Key, sql string) {
	r.queries[key] = sql
}

// Registered returns the keys that have a query, sorted.
func (r *Registry) Registered() []Key {
	var keys []Key
	for k := range r.queries {
		if r.Has(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Merge copies every query of other into r, overriding existing ones.
func (r *Registry) Merge(other *Registry) {
	if other == nil {
		return
	}
	for k, q := range other.queries {
		r.queries[k] = q
	}
}

// Parse reads a YAML mapping of key to SQL text.
func Parse(name string, data []byte) (*Registry, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse queries %s: %w", name, err)
	}
	r := New(name)
	for k, q := range raw {
		key := Key(strings.ToUpper(strings.TrimSpace(k)))
		if !validKey(key) {
			return nil, fmt.Errorf("parse queries %s: unknown query key %q", name, k)
		}
		r.Register(key, q)
	}
	return r, nil
}

// Load reads a query file from disk.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	return Parse(path, data)
}

// Builtin returns the templates shipped for an adapter. Adapters without
// templates get an empty registry.
func Builtin(adapterName string) (*Registry, error) {
	data, err := builtinFS.ReadFile("builtin/" + adapterName + ".yaml")
	if err != nil {
		return New(adapterName), nil
	}
	return Parse(adapterName, data)
}

// ForAdapter returns the built-in templates for an adapter overridden by the
// templates in path, if path is not empty.
func ForAdapter(adapterName, path string) (*Registry, error) {
	r, err := Builtin(adapterName)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return r, nil
	}
	user, err := Load(path)
	if err != nil {
		return nil, err
	}
	r.Merge(user)
	r.name = adapterName + "+" + path
	return r, nil
}
