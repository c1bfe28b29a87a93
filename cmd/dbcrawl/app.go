package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sadopc/dbcrawl/internal/adapter"
	"github.com/sadopc/dbcrawl/internal/config"
	"github.com/sadopc/dbcrawl/internal/crawl"
	"github.com/sadopc/dbcrawl/internal/inclusion"
	"github.com/sadopc/dbcrawl/internal/queries"
	"github.com/sadopc/dbcrawl/internal/render"
	"github.com/sadopc/dbcrawl/internal/schema"
	"github.com/sadopc/dbcrawl/internal/snapshot"
	"github.com/sadopc/dbcrawl/internal/theme"
	"github.com/sadopc/dbcrawl/internal/ui/browser"
)

// errNoDatabase is returned when neither a DSN, a saved connection nor an
// adapter was given.
var errNoDatabase = errors.New("no database given: pass a DSN, --adapter or --connection")

// app carries what every command needs once flags, environment and the
// config file have been merged.
type app struct {
	v    *viper.Viper
	cfg  *config.Config
	path string // config file, which may not exist yet
	log  *zap.Logger
}

// setup loads the config file and binds flags and DBCRAWL_* environment
// variables over it.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	a.v.SetEnvPrefix("DBCRAWL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	var err error
	a.path = a.v.GetString("config")
	if a.path == "" {
		if a.path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	if a.cfg, err = config.Load(a.path); err != nil {
		return err
	}
	a.fileDefaults()

	a.log, err = newLogger(a.v.GetString("log-level"), a.v.GetString("log-format"))
	if err != nil {
		return err
	}
	a.log.Debug("configuration loaded", zap.String("config", a.path))
	return nil
}

// fileDefaults makes the config file values the fallback for unset flags.
func (a *app) fileDefaults() {
	c := a.cfg
	defaults := map[string]any{
		"format":          c.Output.Format,
		"no-color":        c.Output.NoColor,
		"theme":           c.Theme,
		"log-level":       c.Log.Level,
		"log-format":      c.Log.Format,
		"queries":         c.Queries,
		"info-level":      c.Crawl.InfoLevel,
		"table-types":     c.Crawl.TableTypes,
		"routine-types":   c.Crawl.RoutineTypes,
		"child-depth":     c.Crawl.ChildDepth,
		"parent-depth":    c.Crawl.ParentDepth,
		"no-empty-tables": c.Crawl.NoEmptyTables,
		"row-counts":      c.Crawl.LoadRowCounts,
		"invert-match":    c.Crawl.Grep.InvertMatch,
		"only-matching":   c.Crawl.Grep.OnlyMatching,
	}
	if c.Crawl.Timeout > 0 {
		defaults["timeout"] = c.Crawl.Timeout
	}
	for k, v := range defaults {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		a.v.SetDefault(k, v)
	}
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// options merges the crawl section of the config file with the flags.
func (a *app) options(cmd *cobra.Command) (crawl.Options, error) {
	cc := a.cfg.Crawl
	cc.InfoLevel = a.v.GetString("info-level")
	cc.TableTypes = a.v.GetStringSlice("table-types")
	cc.RoutineTypes = a.v.GetStringSlice("routine-types")
	cc.ChildDepth = a.v.GetInt("child-depth")
	cc.ParentDepth = a.v.GetInt("parent-depth")
	cc.NoEmptyTables = a.v.GetBool("no-empty-tables")
	cc.LoadRowCounts = a.v.GetBool("row-counts")
	cc.Grep.InvertMatch = a.v.GetBool("invert-match")
	cc.Grep.OnlyMatching = a.v.GetBool("only-matching")

	if flagStrategies, err := cmd.Flags().GetStringToString("strategy"); err == nil && len(flagStrategies) > 0 {
		merged := make(map[string]string, len(cc.Strategies)+len(flagStrategies))
		for k, v := range cc.Strategies {
			merged[k] = v
		}
		for k, v := range flagStrategies {
			merged[k] = v
		}
		cc.Strategies = merged
	}

	rules := []struct {
		include, exclude string
		target           **inclusion.Rule
	}{
		{"schemas", "exclude-schemas", &cc.Rules.Schemas},
		{"tables", "exclude-tables", &cc.Rules.Tables},
		{"columns", "exclude-columns", &cc.Rules.Columns},
		{"routines", "exclude-routines", &cc.Rules.Routines},
		{"grep-columns", "", &cc.Grep.Columns},
		{"grep-routine-columns", "", &cc.Grep.RoutineColumns},
		{"grep-def", "", &cc.Grep.Definitions},
	}
	for _, r := range rules {
		include := a.v.GetString(r.include)
		var exclude string
		if r.exclude != "" {
			exclude = a.v.GetString(r.exclude)
		}
		if include == "" && exclude == "" {
			continue
		}
		rule, err := inclusion.New(include, exclude)
		if err != nil {
			return crawl.Options{}, &crawl.ConfigurationError{Msg: fmt.Sprintf("--%s: %v", r.include, err)}
		}
		*r.target = &rule
	}
	return cc.Options()
}

// connection resolves the DSN and adapter from the argument, a saved
// connection or the individual connection flags, in that order.
func (a *app) connection(args []string) (adapterName, dsn string, err error) {
	if len(args) > 0 {
		dsn = args[0]
		adapterName = detectAdapter(dsn)
	} else if name := a.v.GetString("connection"); name != "" {
		sc, ok := a.cfg.Connection(name)
		if !ok {
			return "", "", fmt.Errorf("no saved connection named %q", name)
		}
		adapterName, dsn = strings.ToLower(sc.Adapter), sc.BuildDSN()
	}

	if flag := a.v.GetString("adapter"); flag != "" {
		adapterName = flag
	}
	if dsn == "" && adapterName != "" {
		sc := config.SavedConnection{
			Adapter:  adapterName,
			Host:     a.v.GetString("host"),
			Port:     a.v.GetInt("port"),
			User:     a.v.GetString("user"),
			Password: a.v.GetString("password"),
			Database: a.v.GetString("database"),
			File:     a.v.GetString("file"),
		}
		if sc.Port == 0 {
			if ad, ok := adapter.Registry[adapterName]; ok {
				sc.Port = ad.DefaultPort()
			}
		}
		dsn = sc.BuildDSN()
	}

	if adapterName == "" || dsn == "" {
		return "", "", errNoDatabase
	}
	if _, ok := adapter.Registry[adapterName]; !ok {
		return "", "", fmt.Errorf("unknown adapter: %s (available: %s)", adapterName, availableAdapters())
	}
	return adapterName, dsn, nil
}

// withTimeout applies --timeout to ctx.
func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := a.v.GetDuration("timeout"); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// withCrawler connects and runs fn with a crawler over the connection. The
// connection is closed when fn returns.
func (a *app) withCrawler(ctx context.Context, cmd *cobra.Command, args []string, fn func(c *crawl.Crawler, dsn string) error) error {
	opts, err := a.options(cmd)
	if err != nil {
		return err
	}
	adapterName, dsn, err := a.connection(args)
	if err != nil {
		return err
	}
	reg, err := queries.ForAdapter(adapterName, a.v.GetString("queries"))
	if err != nil {
		return err
	}

	a.log.Info("connecting", zap.String("adapter", adapterName), zap.String("dsn", snapshot.SanitizeDSN(dsn)))
	conn, err := adapter.Registry[adapterName].Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect %s: %w", adapterName, err)
	}
	defer conn.Close()

	return fn(crawl.New(conn, opts, crawl.WithLogger(a.log), crawl.WithQueries(reg)), dsn)
}

func (a *app) theme() *theme.Theme {
	if a.v.GetBool("no-color") || os.Getenv("NO_COLOR") != "" {
		return theme.Plain()
	}
	return theme.Get(a.v.GetString("theme"))
}

func (a *app) render(cmd *cobra.Command, cat *schema.Catalog) error {
	format, err := render.ParseFormat(a.v.GetString("format"))
	if err != nil {
		return err
	}
	return render.Write(cmd.OutOrStdout(), cat, format, a.theme())
}

func (a *app) runCrawl(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	return a.withCrawler(ctx, cmd, args, func(c *crawl.Crawler, _ string) error {
		cat, sum, err := c.Crawl(ctx)
		if sum != nil {
			sum.Log(a.log)
		}
		if err != nil {
			return err
		}
		return a.render(cmd, cat)
	})
}

func (a *app) runBrowse(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	return a.withCrawler(ctx, cmd, args, func(c *crawl.Crawler, _ string) error {
		m := browser.NewLoading(ctx, func(ctx context.Context) (*schema.Catalog, error) {
			cat, sum, err := c.Crawl(ctx)
			if sum != nil {
				sum.Log(a.log)
			}
			return cat, err
		}, a.theme())
		// The crawl has its own deadline; the browser stays open after it.
		return browser.Run(context.WithoutCancel(ctx), m)
	})
}

func (a *app) runSnapshot(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("output")
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	return a.withCrawler(ctx, cmd, args, func(c *crawl.Crawler, dsn string) error {
		start := time.Now()
		cat, sum, err := c.Retrieve(ctx)
		if sum != nil {
			sum.Log(a.log)
		}
		if err != nil {
			return err
		}
		if err := snapshot.New(cat, dsn).Save(path); err != nil {
			return err
		}
		n := cat.Counts()
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s: %d schemas, %d tables, %d routines in %s\n",
			path, n.Schemas, n.Tables, n.Routines, time.Since(start).Round(time.Millisecond))
		return nil
	})
}

func (a *app) runOffline(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("input")
	opts, err := a.options(cmd)
	if err != nil {
		return err
	}
	f, err := snapshot.Load(path)
	if err != nil {
		return err
	}
	cat, err := f.Catalog()
	if err != nil {
		return err
	}
	a.log.Info("snapshot loaded",
		zap.String("path", path),
		zap.String("source", f.Source),
		zap.Time("created_at", f.CreatedAt))

	reduced, grepped, err := crawl.Apply(cat, opts, a.log)
	if err != nil {
		return err
	}
	a.log.Info("reduced",
		zap.Int("tables", reduced.Tables),
		zap.Int("routines", reduced.Routines),
		zap.Int("grep_tables", grepped.Tables))
	return a.render(cmd, cat)
}
