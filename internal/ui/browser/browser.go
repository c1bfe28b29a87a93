// Package browser is an interactive terminal browser for a crawled catalog:
// a collapsible tree of schemas, tables, routines, sequences and synonyms on
// the left and the detail of the selected entity on the right.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/sadopc/dbcrawl/internal/render"
	"github.com/sadopc/dbcrawl/internal/schema"
	"github.com/sadopc/dbcrawl/internal/theme"
)

// LoadFunc produces the catalog to browse. It runs off the UI goroutine.
type LoadFunc func(ctx context.Context) (*schema.Catalog, error)

type loadedMsg struct {
	cat *schema.Catalog
	err error
}

type pane int

const (
	paneTree pane = iota
	paneDetail
)

// treeWidthRatio is the share of the screen given to the tree.
const treeWidthRatio = 0.4

// Model is the catalog browser.
type Model struct {
	th      *theme.Theme
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	search  textinput.Model
	detail  viewport.Model

	ctx  context.Context
	load LoadFunc

	cat    *schema.Catalog
	err    error
	nodes  []*TreeNode
	flat   []*TreeNode // flattened visible nodes
	cursor int
	offset int
	width  int
	height int
	focus  pane

	loading   bool
	searching bool
	notice    string
}

// New returns a browser over an already loaded catalog.
func New(cat *schema.Catalog, th *theme.Theme) Model {
	m := newModel(th)
	m.setCatalog(cat)
	return m
}

// NewLoading returns a browser that shows a spinner while load runs.
func NewLoading(ctx context.Context, load LoadFunc, th *theme.Theme) Model {
	m := newModel(th)
	m.ctx = ctx
	m.load = load
	m.loading = true
	return m
}

func newModel(th *theme.Theme) Model {
	if th == nil {
		th = theme.Default()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "table or routine"
	ti.Prompt = " / "

	return Model{
		th:      th,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: s,
		search:  ti,
		detail:  viewport.New(0, 0),
	}
}

// Init starts loading when the browser was created with a LoadFunc.
func (m Model) Init() tea.Cmd {
	if !m.loading {
		return nil
	}
	ctx, load := m.ctx, m.load
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		cat, err := load(ctx)
		return loadedMsg{cat: cat, err: err}
	})
}

// Err returns the error that stopped loading, if any.
func (m Model) Err() error { return m.err }

// Update handles browser messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setCatalog(msg.cat)
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case m.loading || m.err != nil:
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Switch):
		if m.focus == paneTree {
			m.focus = paneDetail
		} else {
			m.focus = paneTree
		}
		return m, nil
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.notice = ""
		m.search.SetValue("")
		return m, m.search.Focus()
	}

	if m.focus == paneDetail {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.flat)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Expand):
		if node := m.selected(); node != nil && len(node.Children) > 0 {
			node.Expanded = !node.Expanded
			m.flatten()
		}
	case key.Matches(msg, m.keys.Collapse):
		if node := m.selected(); node != nil {
			if node.Expanded {
				node.Expanded = false
			} else if node.parent != nil {
				node.parent.Expanded = false
				m.cursor = m.indexOf(node.parent)
			}
			m.flatten()
		}
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = len(m.flat) - 1
	default:
		return m, nil
	}
	m.ensureVisible()
	m.refreshDetail()
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.searching = false
		m.search.Blur()
		return m, nil
	case msg.Type == tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.find(m.search.Value())
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

// find moves the cursor to the best fuzzy match among tables, views and
// routines, expanding its ancestors.
func (m *Model) find(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	var candidates nodeSource
	for _, n := range m.nodes {
		candidates = collect(candidates, n)
	}
	matches := fuzzy.FindFrom(query, candidates)
	if len(matches) == 0 {
		m.notice = fmt.Sprintf("no match for %q", query)
		return
	}
	node := candidates[matches[0].Index]
	for p := node.parent; p != nil; p = p.parent {
		p.Expanded = true
	}
	m.flatten()
	m.cursor = m.indexOf(node)
	m.focus = paneTree
	m.ensureVisible()
	m.refreshDetail()
}

// nodeSource adapts searchable nodes to fuzzy.Source.
type nodeSource []*TreeNode

func (s nodeSource) String(i int) string { return s[i].path() }
func (s nodeSource) Len() int            { return len(s) }

func collect(out nodeSource, n *TreeNode) nodeSource {
	switch n.Kind {
	case NodeTable, NodeView, NodeRoutine, NodeSequence, NodeSynonym:
		out = append(out, n)
	}
	for _, c := range n.Children {
		out = collect(out, c)
	}
	return out
}

// View renders the browser.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.loading {
		return fmt.Sprintf("\n  %s Crawling catalog...\n", m.spinner.View())
	}
	if m.err != nil {
		return m.th.WarningText.Render(fmt.Sprintf("\n  crawl failed: %v\n", m.err)) + "\n  press q to quit\n"
	}

	treeW, detailW, bodyH := m.layout()
	tree := m.borderStyle(paneTree).Width(treeW - 2).Height(bodyH - 2).Render(m.renderTree(treeW-2, bodyH-2))
	detail := m.borderStyle(paneDetail).Width(detailW - 2).Height(bodyH - 2).Render(m.detail.View())

	var status string
	switch {
	case m.searching:
		status = m.search.View()
	case m.notice != "":
		status = m.th.WarningText.Render(" " + m.notice)
	default:
		status = " " + m.help.View(m.keys)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lipgloss.JoinHorizontal(lipgloss.Top, tree, detail), status)
}

func (m Model) layout() (treeW, detailW, bodyH int) {
	statusH := 1
	if m.help.ShowAll && !m.searching {
		statusH = 4
	}
	bodyH = max(m.height-statusH, 3)
	treeW = max(int(float64(m.width)*treeWidthRatio), 12)
	detailW = max(m.width-treeW, 12)
	return treeW, detailW, bodyH
}

func (m Model) renderTree(w, h int) string {
	title := m.th.Title.Render("Catalog")
	if len(m.flat) == 0 {
		return title + "\n\n  Nothing was crawled."
	}
	end := min(m.offset+h-1, len(m.flat))
	lines := []string{title}
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderNode(m.flat[i], i == m.cursor, w))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderNode(node *TreeNode, selected bool, w int) string {
	expandIcon := "  "
	if len(node.Children) > 0 {
		if node.Expanded {
			expandIcon = "▼ "
		} else {
			expandIcon = "▶ "
		}
	}
	label := node.Label
	if node.Detail != "" {
		label = fmt.Sprintf("%s %s", node.Label, node.Detail)
	}
	line := fit(strings.Repeat("  ", node.Depth)+expandIcon+node.icon()+label, w)

	if selected {
		return m.th.Selected.Render(line)
	}
	switch node.Kind {
	case NodeDatabase:
		return m.th.Database.Render(line)
	case NodeSchema:
		return m.th.Schema.Render(line)
	case NodeTable:
		return m.th.Table.Render(line)
	case NodeView:
		return m.th.View.Render(line)
	case NodeRoutine:
		return m.th.Routine.Render(line)
	case NodeSequence:
		return m.th.Sequence.Render(line)
	case NodeSynonym:
		return m.th.Synonym.Render(line)
	case NodeColumn:
		if node.IsPK {
			return m.th.PrimaryKey.Render(line)
		}
	}
	return m.th.Column.Render(line)
}

// fit truncates or pads s to exactly w cells.
func fit(s string, w int) string {
	if w < 1 {
		return ""
	}
	if lipgloss.Width(s) > w {
		r := []rune(s)
		for len(r) > 0 && lipgloss.Width(string(r))+1 > w {
			r = r[:len(r)-1]
		}
		s = string(r) + "…"
	}
	if n := lipgloss.Width(s); n < w {
		s += strings.Repeat(" ", w-n)
	}
	return s
}

func (m Model) borderStyle(p pane) lipgloss.Style {
	if m.focus == p {
		return m.th.FocusedBorder
	}
	return m.th.UnfocusedBorder
}

// SetSize sets the browser dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	_, detailW, bodyH := m.layout()
	m.detail.Width = detailW - 2
	m.detail.Height = bodyH - 2
	m.help.Width = width
	m.ensureVisible()
}

func (m *Model) setCatalog(cat *schema.Catalog) {
	m.cat = cat
	m.nodes = buildTree(cat)
	m.cursor = 0
	m.offset = 0
	m.flatten()
	m.refreshDetail()
}

func (m Model) selected() *TreeNode {
	if m.cursor < 0 || m.cursor >= len(m.flat) {
		return nil
	}
	return m.flat[m.cursor]
}

func (m Model) indexOf(node *TreeNode) int {
	for i, n := range m.flat {
		if n == node {
			return i
		}
	}
	return 0
}

func (m *Model) flatten() {
	m.flat = nil
	for _, node := range m.nodes {
		m.flattenNode(node)
	}
	if m.cursor >= len(m.flat) {
		m.cursor = len(m.flat) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) flattenNode(node *TreeNode) {
	m.flat = append(m.flat, node)
	if node.Expanded {
		for _, child := range node.Children {
			m.flattenNode(child)
		}
	}
}

func (m *Model) ensureVisible() {
	_, _, bodyH := m.layout()
	contentHeight := max(bodyH-3, 1)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+contentHeight {
		m.offset = m.cursor - contentHeight + 1
	}
}

// refreshDetail shows the selected entity in the detail pane.
func (m *Model) refreshDetail() {
	m.detail.SetContent(m.detailFor(m.selected()))
	m.detail.GotoTop()
}

func (m Model) detailFor(node *TreeNode) string {
	if node == nil || m.cat == nil {
		return ""
	}
	switch node.Kind {
	case NodeTable, NodeView, NodeColumn:
		if t := m.cat.Table(node.Table); t != nil {
			return render.Table(m.cat, t, m.th)
		}
	case NodeRoutine:
		if r := m.cat.Routine(node.Routine); r != nil {
			return render.Routine(m.cat, r, m.th)
		}
	case NodeSynonym:
		return fmt.Sprintf("%s -> %s", m.th.Synonym.Render(node.Label), m.th.Reference.Render(node.Detail))
	}
	n := m.cat.Counts()
	return m.th.Heading.Render(m.cat.Name) + "\n\n" + m.th.MutedText.Render(fmt.Sprintf(
		"%d schemas\n%d tables\n%d columns\n%d foreign keys\n%d routines\n%d sequences\n%d synonyms",
		n.Schemas, n.Tables, n.Columns, n.ForeignKeys, n.Routines, n.Sequences, n.Synonyms))
}

// Run starts the browser full screen and blocks until the user quits. A load
// failure is returned after the program exits.
func Run(ctx context.Context, m Model) error {
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok {
		return fm.Err()
	}
	return nil
}
