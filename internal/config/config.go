package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/dbcrawl/internal/crawl"
	"github.com/sadopc/dbcrawl/internal/grep"
)

// Config holds all application configuration.
type Config struct {
	Theme       string            `yaml:"theme"`
	Output      OutputConfig      `yaml:"output"`
	Log         LogConfig         `yaml:"log"`
	Crawl       CrawlConfig       `yaml:"crawl"`
	Queries     string            `yaml:"queries,omitempty"` // user query template file
	Connections []SavedConnection `yaml:"connections"`
}

// OutputConfig holds rendering settings.
type OutputConfig struct {
	Format  string `yaml:"format"` // "text", "json" or "yaml"
	NoColor bool   `yaml:"no_color"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// CrawlConfig is the file form of crawl.Options.
type CrawlConfig struct {
	InfoLevel        string            `yaml:"info_level"`
	Rules            crawl.Rules       `yaml:"rules"`
	TableTypes       []string          `yaml:"table_types,omitempty"`
	RoutineTypes     []string          `yaml:"routine_types,omitempty"`
	TableNamePattern string            `yaml:"table_name_pattern,omitempty"`
	Strategies       map[string]string `yaml:"strategies,omitempty"`
	Grep             grep.Options      `yaml:"grep"`
	ChildDepth       int               `yaml:"child_depth"`
	ParentDepth      int               `yaml:"parent_depth"`
	NoEmptyTables    bool              `yaml:"no_empty_tables"`
	LoadRowCounts    bool              `yaml:"load_row_counts"`
	Timeout          time.Duration     `yaml:"timeout,omitempty"`
}

// Options converts the file form into crawl options.
func (c CrawlConfig) Options() (crawl.Options, error) {
	opts := crawl.DefaultOptions()
	if c.InfoLevel != "" {
		level, err := crawl.ParseInfoLevel(c.InfoLevel)
		if err != nil {
			return opts, &crawl.ConfigurationError{Msg: err.Error()}
		}
		opts.InfoLevel = level
	}
	strategies, err := crawl.ParseStrategies(c.Strategies)
	if err != nil {
		return opts, err
	}
	if c.ChildDepth < 0 || c.ParentDepth < 0 {
		return opts, &crawl.ConfigurationError{Msg: "filter depths cannot be negative"}
	}
	opts.Strategies = strategies
	opts.Rules = c.Rules
	opts.TableTypes = c.TableTypes
	opts.RoutineTypes = c.RoutineTypes
	opts.TableNamePattern = c.TableNamePattern
	opts.Grep = c.Grep
	opts.ChildDepth = c.ChildDepth
	opts.ParentDepth = c.ParentDepth
	opts.NoEmptyTables = c.NoEmptyTables
	opts.LoadRowCounts = c.LoadRowCounts
	return opts, nil
}

// SavedConnection holds parameters for a saved database connection.
type SavedConnection struct {
	Name     string `yaml:"name"`
	Adapter  string `yaml:"adapter"`
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	File     string `yaml:"file,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Theme: "default",
		Output: OutputConfig{
			Format: "text",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Crawl: CrawlConfig{
			InfoLevel: "standard",
		},
	}
}

// ConfigDir returns the dbcrawl configuration directory path.
// It uses os.UserConfigDir to locate the base config directory and
// appends "dbcrawl" to it, typically resulting in ~/.config/dbcrawl/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "dbcrawl"), nil
}

// DefaultPath returns ConfigDir()/config.yaml.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads a Config from the YAML file at path. If the file does not exist,
// it returns DefaultConfig without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Connection returns the saved connection with the given name.
func (c *Config) Connection(name string) (*SavedConnection, bool) {
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i], true
		}
	}
	return nil, false
}

// SetConnection adds sc, replacing a saved connection of the same name.
func (c *Config) SetConnection(sc SavedConnection) {
	for i := range c.Connections {
		if c.Connections[i].Name == sc.Name {
			c.Connections[i] = sc
			return
		}
	}
	c.Connections = append(c.Connections, sc)
}

// BuildDSN constructs a driver connection string from the individual fields
// of a SavedConnection. If DSN is already set, it is returned as-is. File
// based adapters (sqlite, duckdb) get the File field, MySQL gets the
// go-sql-driver "user:pass@tcp(host:port)/db" form and the other network
// adapters get a URL.
func (sc *SavedConnection) BuildDSN() string {
	if sc.DSN != "" {
		return sc.DSN
	}

	adapter := strings.ToLower(sc.Adapter)
	switch adapter {
	case "sqlite", "duckdb":
		if sc.File != "" {
			return sc.File
		}
		if sc.Database != "" {
			return sc.Database
		}
		return ":memory:"
	case "mysql":
		return sc.mysqlDSN()
	}
	return sc.urlDSN(adapter)
}

func (sc *SavedConnection) mysqlDSN() string {
	var b strings.Builder
	if sc.User != "" {
		b.WriteString(sc.User)
		if sc.Password != "" {
			b.WriteByte(':')
			b.WriteString(url.PathEscape(sc.Password))
		}
		b.WriteByte('@')
	}
	port := sc.Port
	if port == 0 {
		port = 3306
	}
	host := sc.Host
	if host == "" {
		host = "localhost"
	}
	fmt.Fprintf(&b, "tcp(%s:%d)", host, port)
	if sc.Database != "" {
		b.WriteByte('/')
		b.WriteString(sc.Database)
	}
	return b.String()
}

func (sc *SavedConnection) urlDSN(scheme string) string {
	u := url.URL{Scheme: scheme, Host: sc.location()}
	if sc.User != "" {
		if sc.Password != "" {
			u.User = url.UserPassword(sc.User, sc.Password)
		} else {
			u.User = url.User(sc.User)
		}
	}
	if sc.Database != "" {
		if scheme == "sqlserver" {
			u.RawQuery = url.Values{"database": {sc.Database}}.Encode()
		} else {
			u.Path = "/" + sc.Database
		}
	}
	return u.String()
}

func (sc *SavedConnection) location() string {
	host := sc.Host
	if host == "" {
		host = "localhost"
	}
	if sc.Port > 0 {
		return fmt.Sprintf("%s:%d", host, sc.Port)
	}
	return host
}

// DisplayString returns a human-readable representation of the connection,
// formatted as "adapter://host:port/database" for network adapters or
// "adapter://file" for file-based adapters. Credentials and DSN parameters
// are never shown.
func (sc *SavedConnection) DisplayString() string {
	adapter := strings.ToLower(sc.Adapter)
	if adapter == "sqlite" || adapter == "duckdb" {
		file := sc.File
		if file == "" {
			file = sc.DSN
		}
		return fmt.Sprintf("%s://%s", sc.Adapter, file)
	}

	if sc.DSN != "" && sc.Host == "" {
		if u, err := url.Parse(sc.DSN); err == nil && u.Host != "" {
			return fmt.Sprintf("%s://%s%s", sc.Adapter, u.Host, u.Path)
		}
	}

	location := sc.location()
	db := sc.Database
	if db != "" {
		return fmt.Sprintf("%s://%s/%s", sc.Adapter, location, db)
	}
	return fmt.Sprintf("%s://%s", sc.Adapter, location)
}
