// Package crawl retrieves database metadata into a schema catalog and then
// narrows it with the reducer and grep passes.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sadopc/dbcrawl/internal/adapter"
	"github.com/sadopc/dbcrawl/internal/grep"
	"github.com/sadopc/dbcrawl/internal/queries"
	"github.com/sadopc/dbcrawl/internal/reduce"
	"github.com/sadopc/dbcrawl/internal/schema"
)

// Source is what a crawl reads metadata from.
type Source = adapter.MetadataSource

// RowCounter counts the rows of one table.
type RowCounter interface {
	CountRows(ctx context.Context, catalog, schemaName, table string) (int64, error)
}

// Crawler runs one crawl over a Source.
type Crawler struct {
	src     Source
	opts    Options
	log     *zap.Logger
	queries *queries.Registry
	counter RowCounter
	db      *sqlx.DB
	name    string
	product string
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Crawler) {
		if log != nil {
			c.log = log
		}
	}
}

// WithQueries sets the data dictionary queries.
func WithQueries(reg *queries.Registry) Option {
	return func(c *Crawler) { c.queries = reg }
}

// WithRowCounter overrides the row counter taken from the source.
func WithRowCounter(rc RowCounter) Option {
	return func(c *Crawler) { c.counter = rc }
}

// WithDB sets the connection data dictionary queries run on.
func WithDB(db *sqlx.DB) Option {
	return func(c *Crawler) { c.db = db }
}

// WithCatalogName names the resulting catalog and the database product.
func WithCatalogName(name, product string) Option {
	return func(c *Crawler) {
		c.name = name
		c.product = product
	}
}

// New creates a crawler. Sources that also count rows, expose a database
// handle or report their name (as adapter connections do) are picked up
// automatically.
func New(src Source, opts Options, options ...Option) *Crawler {
	c := &Crawler{src: src, opts: opts, log: zap.NewNop()}
	if rc, ok := src.(RowCounter); ok {
		c.counter = rc
	}
	if d, ok := src.(interface{ DB() *sqlx.DB }); ok {
		c.db = d.DB()
	}
	if n, ok := src.(interface{ DatabaseName() string }); ok {
		c.name = n.DatabaseName()
	}
	if n, ok := src.(interface{ AdapterName() string }); ok {
		c.product = n.AdapterName()
	}
	for _, o := range options {
		o(c)
	}
	if c.opts.Strategies == nil {
		c.opts.Strategies = Strategies{}
	}
	return c
}

// Options returns the options the crawler runs with.
func (c *Crawler) Options() Options { return c.opts }

// Crawl retrieves the catalog, reduces it and applies grep. On error no
// catalog is returned; the summary covers what ran.
func (c *Crawler) Crawl(ctx context.Context) (*schema.Catalog, *Summary, error) {
	cat, sum, err := c.Retrieve(ctx)
	if err != nil {
		return nil, sum, err
	}
	reduced, grepped, err := Apply(cat, c.opts, c.log)
	if err != nil {
		return nil, sum, err
	}
	sum.Reduced = reduced
	sum.Grep = grepped
	return cat, sum, nil
}

// Apply reduces a retrieved catalog and then applies grep. Catalogs loaded
// from a snapshot go through it too, since they were saved unreduced.
func Apply(cat *schema.Catalog, opts Options, log *zap.Logger) (reduce.Result, grep.Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	reduced, err := reduce.Reduce(cat, opts.ReduceOptions(), log)
	if err != nil {
		return reduced, grep.Result{}, err
	}
	return reduced, grep.Apply(cat, opts.Grep, log), nil
}

// Retrieve populates a catalog without reducing it.
func (c *Crawler) Retrieve(ctx context.Context) (*schema.Catalog, *Summary, error) {
	if err := c.validate(); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	r := &retrieval{
		Crawler: c,
		cat:     schema.NewCatalog(c.name, c.product),
		sum:     newSummary(c.name),
	}
	steps := []func(context.Context) error{
		r.schemas,
		r.tables,
		r.columns,
		r.indexes,
		r.foreignKeys,
		r.triggers,
		r.routines,
		r.routineColumns,
		r.sequences,
		r.synonyms,
		r.rowCounts,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, r.sum, err
		}
		if err := step(ctx); err != nil {
			return nil, r.sum, err
		}
	}
	r.sum.Elapsed = time.Since(start)
	c.log.Debug("retrieved catalog",
		zap.String("catalog", c.name),
		zap.Duration("elapsed", r.sum.Elapsed))
	return r.cat, r.sum, nil
}

// validate rejects strategies that cannot run before anything is retrieved.
func (c *Crawler) validate() error {
	var enabled []Category
	for _, cat := range Categories {
		if ok, _ := c.opts.enabled(cat); ok {
			enabled = append(enabled, cat)
		}
	}
	strategies := c.opts.Strategies.only(enabled)
	if err := strategies.Validate(c.queries); err != nil {
		return err
	}
	for _, cat := range enabled {
		if strategies.For(cat) == DataDictionaryAll && c.db == nil {
			return &ConfigurationError{
				Category: cat,
				Msg:      fmt.Sprintf("strategy %s needs a database connection", DataDictionaryAll),
			}
		}
	}
	return nil
}

// fetch retrieves the rows of one category with its configured strategy.
// The metadata strategy calls fn once per scope; a nil result with a nil
// error means the category is unsupported.
func fetch[R any](ctx context.Context, r *retrieval, category Category, scopes []adapter.Scope,
	fn func(context.Context, adapter.Scope) ([]R, error)) ([]R, error) {
	st := r.opts.Strategies.For(category)
	e := r.sum.entry(category)
	e.Strategy = st

	var rows []R
	var err error
	switch st {
	case DataDictionaryAll:
		query, _ := r.queries.Get(category.QueryKey())
		e.Calls++
		rows, err = queryDictionary[R](ctx, r.db, query, adapter.Scope{})
	case MetadataAll:
		e.Calls++
		rows, err = fn(ctx, adapter.Scope{})
	default:
		for _, s := range scopes {
			e.Calls++
			var part []R
			if part, err = fn(ctx, s); err != nil {
				break
			}
			rows = append(rows, part...)
		}
	}

	if errors.Is(err, adapter.ErrUnsupported) {
		e.Unsupported = true
		r.log.Warn("metadata not supported",
			zap.String("category", string(category)),
			zap.String("strategy", string(st)),
			zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, &RetrievalError{Category: category, Strategy: st, Err: err}
	}
	e.Rows = len(rows)
	return rows, nil
}

// queryDictionary runs a named data dictionary query and scans each row into
// R by its db tags. Columns R does not declare are ignored.
func queryDictionary[R any](ctx context.Context, db *sqlx.DB, query string, scope adapter.Scope) ([]R, error) {
	args := map[string]interface{}{
		"catalog": scope.Catalog,
		"schema":  scope.Schema,
	}
	rows, err := db.Unsafe().NamedQueryContext(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []R
	for rows.Next() {
		var row R
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
