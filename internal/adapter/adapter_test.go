package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
)

// mockAdapter is a minimal adapter for testing the registry.
type mockAdapter struct {
	name string
	port int
}

func (m *mockAdapter) Name() string     { return m.name }
func (m *mockAdapter) DefaultPort() int { return m.port }
func (m *mockAdapter) Connect(_ context.Context, _ string) (Connection, error) {
	return nil, errors.New("mock: not implemented")
}

func saveRegistry(t *testing.T) {
	t.Helper()
	orig := make(map[string]Adapter)
	for k, v := range Registry {
		orig[k] = v
	}
	t.Cleanup(func() { Registry = orig })
	Registry = map[string]Adapter{}
}

func TestRegister(t *testing.T) {
	saveRegistry(t)

	mock := &mockAdapter{name: "testdb", port: 9999}
	Register(mock)

	got, ok := Registry["testdb"]
	if !ok {
		t.Fatal("expected adapter 'testdb' to be registered")
	}
	if got.Name() != "testdb" {
		t.Errorf("Name() = %q, want %q", got.Name(), "testdb")
	}
	if got.DefaultPort() != 9999 {
		t.Errorf("DefaultPort() = %d, want %d", got.DefaultPort(), 9999)
	}
}

func TestRegister_Multiple(t *testing.T) {
	saveRegistry(t)

	for _, n := range []string{"charlie", "alpha", "bravo"} {
		Register(&mockAdapter{name: n})
	}

	names := Names()
	sort.Strings(names)
	want := []string{"alpha", "bravo", "charlie"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("Names() = %v, want %v", names, want)
	}
}

func TestMatchLike(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"", "anything", true},
		{"%", "", true},
		{"users", "users", true},
		{"users", "Users", false},
		{"user%", "users", true},
		{"user%", "use", false},
		{"%s", "users", true},
		{"u_ers", "users", true},
		{"u_ers", "uers", false},
		{"%ook%", "bookauthors", true},
		{"a%b%c", "axxbyyc", true},
		{"a%b%c", "axxbyy", false},
		{"%a%a", "banana", true},
		{"100%", "100%", true},
	}
	for _, tt := range tests {
		if got := MatchLike(tt.pattern, tt.s); got != tt.want {
			t.Errorf("MatchLike(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}

func TestScope(t *testing.T) {
	all := Scope{}
	if !all.IsAll() {
		t.Error("empty scope should match everything")
	}
	if !all.Matches("cat", "sch") {
		t.Error("empty scope should match any schema")
	}

	s := Scope{Schema: "public"}
	if s.IsAll() {
		t.Error("schema scope is not all")
	}
	if !s.Matches("anydb", "public") {
		t.Error("scope without catalog should match any catalog")
	}
	if s.Matches("", "private") {
		t.Error("scope should not match another schema")
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent(`my "table"`); got != `"my ""table"""` {
		t.Errorf("QuoteIdent() = %s", got)
	}
}

func TestErrors(t *testing.T) {
	if errors.Is(ErrUnsupported, ErrNotConnected) {
		t.Error("ErrUnsupported and ErrNotConnected should be distinct")
	}
	wrapped := fmt.Errorf("sqlite synonyms: %w", ErrUnsupported)
	if !errors.Is(wrapped, ErrUnsupported) {
		t.Error("wrapped ErrUnsupported should match with errors.Is")
	}
}

func TestLikePattern(t *testing.T) {
	if got := LikePattern(""); got != "%" {
		t.Errorf("LikePattern(\"\") = %q, want %%", got)
	}
	if got := LikePattern("ord_rs"); got != "ord_rs" {
		t.Errorf("LikePattern(ord_rs) = %q", got)
	}
}

func TestHasType(t *testing.T) {
	tests := []struct {
		types []string
		typ   string
		want  bool
	}{
		{nil, "TABLE", true},
		{[]string{"TABLE"}, "TABLE", true},
		{[]string{"table", "view"}, "VIEW", true},
		{[]string{"TABLE"}, "MATERIALIZED VIEW", false},
	}
	for _, tt := range tests {
		if got := HasType(tt.types, tt.typ); got != tt.want {
			t.Errorf("HasType(%v, %q) = %v, want %v", tt.types, tt.typ, got, tt.want)
		}
	}
}
