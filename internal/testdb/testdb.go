// Package testdb creates the books test schema used by adapter and crawl
// tests.
package testdb

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed books.sql
var booksSQL string

// Statements splits the books script into executable statements. Statements
// are separated by blank lines; a chunk without a BEGIN block may hold
// several one-line statements.
func Statements() []string {
	var out []string
	for _, chunk := range strings.Split(booksSQL, "\n\n") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		chunk = strings.TrimSpace(strings.Join(lines, "\n"))
		if chunk == "" {
			continue
		}
		if strings.Contains(strings.ToUpper(chunk), "BEGIN") {
			out = append(out, chunk)
			continue
		}
		for _, stmt := range strings.Split(chunk, ";\n") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				out = append(out, stmt)
			}
		}
	}
	return out
}

// Load runs the books script against db.
func Load(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("testdb: %w\n%s", err, stmt)
		}
	}
	return nil
}

// Table names in the books schema.
var Tables = []string{
	"authors",
	"authors_list",
	"book_authors",
	"books",
	"coupons",
	"customers",
	"editions",
	"publishers",
}

// EmptyTables are the tables the script leaves without rows.
var EmptyTables = []string{"coupons", "customers", "editions"}
