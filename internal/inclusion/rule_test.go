package inclusion

import (
	"regexp"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRuleTest(t *testing.T) {
	tests := []struct {
		name    string
		include string
		exclude string
		input   string
		want    bool
	}{
		{"no patterns includes", "", "", "PUBLIC.BOOKS.AUTHORS", true},
		{"include matches", ".*AUTHORS", "", "PUBLIC.BOOKS.AUTHORS", true},
		{"include does not match", ".*AUTHORS", "", "PUBLIC.BOOKS.BOOKS", false},
		{"exclude matches", "", ".*\\.BOOKS\\..*", "PUBLIC.BOOKS.AUTHORS", false},
		{"exclude does not match", "", ".*TEMP.*", "PUBLIC.BOOKS.AUTHORS", true},
		{"exclude wins over include", ".*", ".*AUTHORS", "PUBLIC.BOOKS.AUTHORS", false},
		{"whole string only", "BOOK", "", "BOOKS", false},
		{"whole string with alternation", "A|B", "", "AB", false},
		{"alternation matches member", "A|B", "", "B", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.include, tt.exclude)
			if err != nil {
				t.Fatalf("New(%q, %q) error: %v", tt.include, tt.exclude, err)
			}
			if got := r.Test(tt.input); got != tt.want {
				t.Errorf("Test(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestRuleComposition checks Test against the defining formula over a grid
// of patterns and names.
func TestRuleComposition(t *testing.T) {
	patterns := []string{"", ".*", "A.*", ".*B", "AB", "X|Y", "[A-Z]+"}
	names := []string{"", "A", "AB", "B", "XB", "X", "ab", "A.B"}

	whole := func(p, s string) bool {
		return regexp.MustCompile(`^(?:` + p + `)$`).MatchString(s)
	}

	for _, inc := range patterns {
		for _, exc := range patterns {
			r := MustNew(inc, exc)
			for _, n := range names {
				want := (inc == "" || whole(inc, n)) && !(exc != "" && whole(exc, n))
				if got := r.Test(n); got != want {
					t.Errorf("rule(+%q -%q).Test(%q) = %v, want %v", inc, exc, n, got, want)
				}
			}
		}
	}
}

func TestNewInvalidPattern(t *testing.T) {
	if _, err := New("(", ""); err == nil {
		t.Error("New with invalid include pattern should fail")
	}
	if _, err := New("", "[a-"); err == nil {
		t.Error("New with invalid exclude pattern should fail")
	}
}

func TestExcludeAll(t *testing.T) {
	r := ExcludeAll()
	if !r.IsExcludeAll() {
		t.Error("ExcludeAll().IsExcludeAll() = false, want true")
	}
	if r.Test("anything") {
		t.Error("ExcludeAll().Test() = true, want false")
	}

	if MustNew("A.*", ".*").IsExcludeAll() {
		t.Error("a rule with an include pattern is not the exclude-all sentinel")
	}
	if IncludeAll().IsExcludeAll() {
		t.Error("IncludeAll().IsExcludeAll() = true, want false")
	}
	if !IncludeAll().IsIncludeAll() {
		t.Error("IncludeAll().IsIncludeAll() = false, want true")
	}
}

func TestRuleExcludes(t *testing.T) {
	r := MustNew("A.*", "AX")
	if r.Excludes("B") {
		t.Error("Excludes(B) = true; B only fails the include pattern")
	}
	if !r.Excludes("AX") {
		t.Error("Excludes(AX) = false, want true")
	}
}

func TestRuleString(t *testing.T) {
	tests := []struct {
		rule Rule
		want string
	}{
		{IncludeAll(), "+/.*/"},
		{MustNew("A.*", ""), "+/A.*/"},
		{MustNew("A.*", "AB"), "+/A.*/ -/AB/"},
		{ExcludeAll(), "-/.*/"},
	}
	for _, tt := range tests {
		if got := tt.rule.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRuleUnmarshalYAML(t *testing.T) {
	var cfg struct {
		Tables  Rule  `yaml:"tables"`
		Columns Rule  `yaml:"columns"`
		Missing *Rule `yaml:"missing"`
	}
	doc := `
tables:
  include: PUBLIC\..*
  exclude: .*_OLD
columns: .*\.ID
`
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if cfg.Tables.IncludePattern() != `PUBLIC\..*` {
		t.Errorf("tables include = %q", cfg.Tables.IncludePattern())
	}
	if cfg.Tables.ExcludePattern() != ".*_OLD" {
		t.Errorf("tables exclude = %q", cfg.Tables.ExcludePattern())
	}
	if !cfg.Tables.Test("PUBLIC.BOOKS") || cfg.Tables.Test("PUBLIC.BOOKS_OLD") {
		t.Error("tables rule does not behave as configured")
	}
	if !cfg.Columns.Test("PUBLIC.BOOKS.ID") || cfg.Columns.Test("PUBLIC.BOOKS.TITLE") {
		t.Error("scalar rule should be an include pattern")
	}
	if cfg.Missing != nil {
		t.Error("absent rule should stay nil")
	}
}

func TestRuleUnmarshalYAMLInvalid(t *testing.T) {
	var cfg struct {
		Tables Rule `yaml:"tables"`
	}
	if err := yaml.Unmarshal([]byte("tables: \"(\"\n"), &cfg); err == nil {
		t.Error("expected error for invalid pattern")
	}
	if err := yaml.Unmarshal([]byte("tables: [a, b]\n"), &cfg); err == nil {
		t.Error("expected error for sequence node")
	}
}
