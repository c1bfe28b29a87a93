package browser

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/dbcrawl/internal/schema"
	"github.com/sadopc/dbcrawl/internal/theme"
)

func keyMsg(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func specialKeyMsg(keyType tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: keyType}
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		if m, ok = next.(Model); !ok {
			t.Fatalf("Update returned %T", next)
		}
	}
	return m
}

func shop() *schema.Catalog {
	cat := schema.NewCatalog("shop", "sqlite")
	s := cat.AddSchema("", "main")
	users := cat.Table(cat.AddTable(s, "users", schema.TypeTable))
	users.AddColumn(schema.Column{Name: "id", TypeName: "integer", PartOfPK: true})
	users.AddColumn(schema.Column{Name: "email", TypeName: "text"})
	orders := cat.Table(cat.AddTable(s, "orders", schema.TypeTable))
	orders.AddColumn(schema.Column{Name: "id", TypeName: "integer", PartOfPK: true})
	orders.AddColumn(schema.Column{Name: "user_id", TypeName: "integer"})
	active := cat.Table(cat.AddTable(s, "active_users", schema.TypeView))
	active.Definition = "SELECT * FROM users"
	cat.AddForeignKey(schema.ForeignKey{
		Name:    "orders_user_fk",
		Child:   orders.ID,
		Parent:  users.ID,
		Columns: []schema.ColumnRef{{Child: "user_id", Parent: "id"}},
	})
	cat.AddRoutine(s, "order_total", "", schema.RoutineFunction)
	return cat
}

func TestBuildTree(t *testing.T) {
	nodes := buildTree(shop())
	if len(nodes) != 1 || nodes[0].Kind != NodeDatabase || nodes[0].Label != "shop" {
		t.Fatalf("root = %+v", nodes)
	}
	main := nodes[0].Children[0]
	if main.Label != "main" || !main.Expanded {
		t.Fatalf("schema node = %+v", main)
	}

	var groups []string
	for _, g := range main.Children {
		groups = append(groups, g.Label)
	}
	if got := strings.Join(groups, ", "); got != "Tables (2), Views (1), Routines (1)" {
		t.Errorf("groups = %q", got)
	}

	users := main.Children[0].Children[0]
	if users.Label != "users" || users.Kind != NodeTable || len(users.Children) != 2 {
		t.Fatalf("users node = %+v", users)
	}
	if !users.Children[0].IsPK || users.Children[0].Detail != "integer" {
		t.Errorf("users.id node = %+v", users.Children[0])
	}
	if got := users.Children[1].path(); got != "main.users.email" {
		t.Errorf("path() = %q", got)
	}
}

func TestNavigation(t *testing.T) {
	m := New(shop(), theme.Default())
	m.SetSize(100, 30)

	// shop, main, Tables, users, orders, Views, Routines
	if len(m.flat) != 7 {
		t.Fatalf("visible nodes = %d, want 7", len(m.flat))
	}

	m = send(t, m, specialKeyMsg(tea.KeyDown), keyMsg("j"), keyMsg("j"))
	if sel := m.selected(); sel.Label != "users" {
		t.Fatalf("selected %q, want users", sel.Label)
	}
	if !strings.Contains(m.detail.View(), "orders_user_fk") {
		t.Error("detail pane does not show the users table")
	}

	m = send(t, m, specialKeyMsg(tea.KeyEnter))
	if len(m.flat) != 9 {
		t.Errorf("visible nodes after expand = %d, want 9", len(m.flat))
	}
	m = send(t, m, keyMsg("j"), keyMsg("h"))
	if sel := m.selected(); sel.Label != "users" || sel.Expanded {
		t.Errorf("collapse from a column should select the collapsed table, got %+v", sel)
	}

	m = send(t, m, keyMsg("G"))
	if m.cursor != len(m.flat)-1 {
		t.Errorf("cursor = %d after G, want %d", m.cursor, len(m.flat)-1)
	}
	m = send(t, m, keyMsg("g"))
	if m.cursor != 0 {
		t.Errorf("cursor = %d after g, want 0", m.cursor)
	}
}

func TestSearch(t *testing.T) {
	m := New(shop(), theme.Default())
	m.SetSize(100, 30)

	m = send(t, m, keyMsg("/"))
	if !m.searching {
		t.Fatal("expected search mode after /")
	}
	m = send(t, m, keyMsg("a"), keyMsg("c"), keyMsg("t"), specialKeyMsg(tea.KeyEnter))
	if m.searching {
		t.Fatal("expected search mode to end on enter")
	}
	sel := m.selected()
	if sel == nil || sel.Label != "active_users" {
		t.Fatalf("selected %+v, want active_users", sel)
	}
	if !sel.parent.Expanded {
		t.Error("views group was not expanded to reveal the match")
	}
	if !strings.Contains(m.detail.View(), "SELECT") {
		t.Error("detail pane does not show the view definition")
	}

	m = send(t, m, keyMsg("/"), keyMsg("z"), keyMsg("z"), keyMsg("z"), specialKeyMsg(tea.KeyEnter))
	if !strings.Contains(m.notice, "no match") {
		t.Errorf("notice = %q, want no match", m.notice)
	}
}

func TestLoading(t *testing.T) {
	load := func(context.Context) (*schema.Catalog, error) { return shop(), nil }
	m := NewLoading(context.Background(), load, nil)
	m.SetSize(80, 24)

	if m.Init() == nil {
		t.Fatal("Init() returned no command while loading")
	}
	if !strings.Contains(m.View(), "Crawling") {
		t.Errorf("View() while loading = %q", m.View())
	}

	m = send(t, m, loadedMsg{cat: shop()})
	if m.loading || len(m.flat) == 0 {
		t.Fatal("catalog not shown after loading")
	}
	if !strings.Contains(m.View(), "users") {
		t.Error("View() does not list tables")
	}
}

func TestLoadingError(t *testing.T) {
	m := NewLoading(context.Background(), nil, nil)
	m.SetSize(80, 24)
	m = send(t, m, loadedMsg{err: errors.New("connection refused")})

	if m.Err() == nil {
		t.Fatal("Err() = nil after a failed load")
	}
	if !strings.Contains(m.View(), "connection refused") {
		t.Errorf("View() = %q", m.View())
	}
	if _, cmd := m.Update(keyMsg("q")); cmd == nil {
		t.Error("q should quit after a failed load")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		in   string
		w    int
		want string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 4, "abc…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := fit(tt.in, tt.w); got != tt.want {
			t.Errorf("fit(%q, %d) = %q, want %q", tt.in, tt.w, got, tt.want)
		}
	}
}
