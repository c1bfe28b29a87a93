package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrUnsupported marks a metadata capability the database does not have,
	// such as synonyms in PostgreSQL. Callers treat it as an empty result.
	ErrUnsupported  = errors.New("metadata capability not supported")
	ErrNotConnected = errors.New("not connected to database")
)

// Adapter creates database connections.
type Adapter interface {
	Connect(ctx context.Context, dsn string) (Connection, error)
	Name() string
	DefaultPort() int
}

// Scope narrows a metadata call to one catalog and schema. Empty fields
// match everything.
type Scope struct {
	Catalog string
	Schema  string
}

// IsAll reports whether the scope matches every schema.
func (s Scope) IsAll() bool { return s.Catalog == "" && s.Schema == "" }

// Matches reports whether a row in the given catalog and schema is in scope.
func (s Scope) Matches(catalog, schemaName string) bool {
	return (s.Catalog == "" || s.Catalog == catalog) && (s.Schema == "" || s.Schema == schemaName)
}

// MetadataSource answers structural questions about a database. Every call
// returns rows in a stable order. Name patterns use SQL LIKE syntax and an
// empty pattern matches everything. Calls the database cannot answer return
// an error wrapping ErrUnsupported.
type MetadataSource interface {
	Schemas(ctx context.Context) ([]SchemaRow, error)
	Tables(ctx context.Context, scope Scope, namePattern string, types []string) ([]TableRow, error)
	Columns(ctx context.Context, scope Scope, tablePattern string) ([]ColumnRow, error)
	Indexes(ctx context.Context, scope Scope, tablePattern string) ([]IndexRow, error)
	ForeignKeys(ctx context.Context, scope Scope, tablePattern string) ([]ForeignKeyRow, error)
	Triggers(ctx context.Context, scope Scope, tablePattern string) ([]TriggerRow, error)
	Routines(ctx context.Context, scope Scope, namePattern string) ([]RoutineRow, error)
	RoutineColumns(ctx context.Context, scope Scope, routinePattern string) ([]RoutineColumnRow, error)
	Sequences(ctx context.Context, scope Scope, namePattern string) ([]SequenceRow, error)
	Synonyms(ctx context.Context, scope Scope, namePattern string) ([]SynonymRow, error)
}

// Connection represents an active database connection.
type Connection interface {
	MetadataSource

	// CountRows returns the number of rows in one table.
	CountRows(ctx context.Context, catalog, schemaName, table string) (int64, error)

	// DB exposes the connection for data dictionary queries.
	DB() *sqlx.DB

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Info
	DatabaseName() string
	AdapterName() string
}

// Registry holds registered adapters by name.
var Registry = map[string]Adapter{}

// Register adds an adapter to the global registry.
func Register(a Adapter) {
	Registry[a.Name()] = a
}

// Names returns the registered adapter names.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for n := range Registry {
		names = append(names, n)
	}
	return names
}

// MatchLike reports whether s matches a SQL LIKE pattern, with % for any run
// of characters and _ for exactly one. An empty pattern matches everything.
// Adapters whose metadata comes from PRAGMAs use it to honour name patterns.
func MatchLike(pattern, s string) bool {
	if pattern == "" || pattern == "%" {
		return true
	}
	p, str := []rune(pattern), []rune(s)
	// Iterative wildcard match with backtracking to the last %.
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(str) {
		switch {
		case pi < len(p) && p[pi] == '%':
			star = pi
			mark = si
			pi++
		case pi < len(p) && (p[pi] == '_' || p[pi] == str[si]):
			pi++
			si++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}

// QuoteIdent quotes an identifier with double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// LikePattern returns p, or the match-all pattern when p is empty. Adapters
// that pass patterns to the database use it.
func LikePattern(p string) string {
	if p == "" {
		return "%"
	}
	return p
}

// HasType reports whether typ is one of types, ignoring case. An empty list
// holds every type.
func HasType(types []string, typ string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if strings.EqualFold(t, typ) {
			return true
		}
	}
	return false
}
