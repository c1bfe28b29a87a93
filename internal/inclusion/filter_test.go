package inclusion

import (
	"testing"
)

type named string

func (n named) FullName() string { return string(n) }

func TestDefaultIncludes(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindSchema, true},
		{KindTable, true},
		{KindColumn, true},
		{KindRoutineColumn, true},
		{KindRoutine, false},
		{KindSequence, false},
		{KindSynonym, false},
	}
	for _, tt := range tests {
		if got := DefaultIncludes(tt.kind); got != tt.want {
			t.Errorf("DefaultIncludes(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestFilterUnconfigured(t *testing.T) {
	tables := NewFilter(KindTable, nil)
	if !tables.Test("PUBLIC.BOOKS") {
		t.Error("unconfigured table filter should include")
	}
	if tables.IsExcludeAll() {
		t.Error("unconfigured table filter is not exclude-all")
	}

	routines := NewFilter(KindRoutine, nil)
	if routines.Test("PUBLIC.NEW_PUBLISHER") {
		t.Error("unconfigured routine filter should exclude")
	}
	if !routines.IsExcludeAll() {
		t.Error("unconfigured routine filter should be exclude-all")
	}
	if routines.Excludes("PUBLIC.NEW_PUBLISHER") {
		t.Error("unconfigured filter never explicitly excludes")
	}
}

func TestFilterConfiguredOverridesDefault(t *testing.T) {
	all := IncludeAll()
	routines := NewFilter(KindRoutine, &all)
	if !routines.Test("PUBLIC.NEW_PUBLISHER") {
		t.Error("include-all rule should include routines")
	}
	if routines.IsExcludeAll() {
		t.Error("configured include-all routine filter is not exclude-all")
	}

	none := ExcludeAll()
	columns := NewFilter(KindColumn, &none)
	if columns.Include(named("PUBLIC.BOOKS.ID")) {
		t.Error("exclude-all rule should exclude columns")
	}
	if !columns.IsExcludeAll() {
		t.Error("exclude-all column filter should report IsExcludeAll")
	}
}

func TestFilterPartialRule(t *testing.T) {
	// Only an exclude pattern: everything else is included, even for a
	// kind that is excluded by default.
	r := MustNew("", ".*TEMP.*")
	f := NewFilter(KindSequence, &r)
	if !f.Test("PUBLIC.SEQ1") {
		t.Error("exclude-only rule should include non-matching names")
	}
	if f.Test("PUBLIC.TEMP_SEQ") {
		t.Error("exclude-only rule should exclude matching names")
	}
	if !f.Excludes("PUBLIC.TEMP_SEQ") {
		t.Error("Excludes should report the explicit exclusion")
	}
}

func TestFilterString(t *testing.T) {
	if got := NewFilter(KindRoutine, nil).String(); got != "routine: exclude by default" {
		t.Errorf("String() = %q", got)
	}
	r := MustNew("A", "")
	if got := NewFilter(KindTable, &r).String(); got != "table: +/A/" {
		t.Errorf("String() = %q", got)
	}
}

func TestSuggest(t *testing.T) {
	candidates := []string{"PUBLIC.BOOKS.AUTHORS", "PUBLIC.BOOKS.BOOKS", "PUBLIC.BOOKS.PUBLISHERS"}

	got := Suggest(".*AUTHOR.*", candidates, 2)
	if len(got) == 0 || got[0] != "PUBLIC.BOOKS.AUTHORS" {
		t.Errorf("Suggest() = %v, want AUTHORS first", got)
	}
	if len(got) > 2 {
		t.Errorf("Suggest() returned %d results, want at most 2", len(got))
	}

	if got := Suggest(".*", candidates, 3); got != nil {
		t.Errorf("Suggest(.*) = %v, want nil", got)
	}
	if got := Suggest("AUTHORS", nil, 3); got != nil {
		t.Errorf("Suggest with no candidates = %v, want nil", got)
	}
}
