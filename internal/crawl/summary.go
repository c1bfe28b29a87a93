package crawl

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/dbcrawl/internal/grep"
	"github.com/sadopc/dbcrawl/internal/reduce"
)

// Entry records how one category was retrieved.
type Entry struct {
	Category    Category
	Strategy    Strategy
	Calls       int
	Rows        int
	Retrieved   int
	Skipped     bool
	Reason      string
	Unsupported bool
}

// Summary records what a crawl did.
type Summary struct {
	Catalog string
	Entries []*Entry
	Reduced reduce.Result
	Grep    grep.Result
	Elapsed time.Duration
}

func newSummary(catalog string) *Summary {
	return &Summary{Catalog: catalog}
}

// entry returns the entry for a category, adding it on first use.
func (s *Summary) entry(c Category) *Entry {
	for _, e := range s.Entries {
		if e.Category == c {
			return e
		}
	}
	e := &Entry{Category: c}
	s.Entries = append(s.Entries, e)
	return e
}

// Entry looks up the entry for a category.
func (s *Summary) Entry(c Category) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	for _, e := range s.Entries {
		if e.Category == c {
			return *e, true
		}
	}
	return Entry{}, false
}

// Calls returns the total number of metadata calls and queries issued.
func (s *Summary) Calls() int {
	var n int
	for _, e := range s.Entries {
		n += e.Calls
	}
	return n
}

// Log writes one line per category, including those that retrieved
// nothing.
func (s *Summary) Log(log *zap.Logger) {
	if s == nil || log == nil {
		return
	}
	for _, e := range s.Entries {
		fields := []zap.Field{zap.String("catalog", s.Catalog)}
		switch {
		case e.Skipped:
			fields = append(fields, zap.String("status", "skipped"), zap.String("reason", e.Reason))
		case e.Unsupported:
			fields = append(fields, zap.String("status", "unsupported"))
		default:
			fields = append(fields, zap.String("status", "ok"))
		}
		if e.Strategy != "" {
			fields = append(fields, zap.String("strategy", string(e.Strategy)))
		}
		fields = append(fields, zap.Int("calls", e.Calls), zap.Int("rows", e.Rows))
		log.Info(fmt.Sprintf("%s: %d retrieved", e.Category, e.Retrieved), fields...)
	}
	log.Info("reduced",
		zap.Int("schemas", s.Reduced.Schemas),
		zap.Int("tables", s.Reduced.Tables),
		zap.Int("columns", s.Reduced.Columns),
		zap.Int("foreign_keys", s.Reduced.ForeignKeys),
		zap.Int("routines", s.Reduced.Routines),
		zap.Int("grep_tables", s.Grep.Tables),
		zap.Int("grep_routines", s.Grep.Routines),
		zap.Duration("elapsed", s.Elapsed))
}
