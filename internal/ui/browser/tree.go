package browser

import (
	"fmt"
	"os"
	"strings"

	"github.com/sadopc/dbcrawl/internal/schema"
)

// useSimpleIcons returns true when running inside Neovim's terminal emulator,
// which has emoji width rendering issues in libvterm.
var useSimpleIcons = os.Getenv("NVIM") != ""

// NodeKind represents the type of tree node.
type NodeKind int

const (
	NodeDatabase NodeKind = iota
	NodeSchema
	NodeGroup
	NodeTable
	NodeView
	NodeColumn
	NodeRoutine
	NodeSequence
	NodeSynonym
)

// TreeNode represents a node in the catalog tree. Table and routine nodes
// carry the handle of the entity they show.
type TreeNode struct {
	Label    string
	Kind     NodeKind
	Children []*TreeNode
	Expanded bool
	Depth    int

	Table   schema.TableID
	Routine schema.RoutineID
	Detail  string // type of a column, target of a synonym
	IsPK    bool

	parent *TreeNode
}

func buildTree(cat *schema.Catalog) []*TreeNode {
	root := &TreeNode{Label: cat.Name, Kind: NodeDatabase, Expanded: true}
	if root.Label == "" {
		root.Label = cat.Product
	}

	schemas := cat.Schemas()
	for _, s := range schemas {
		label := s.FullName()
		if label == "" {
			label = "(default)"
		}
		sn := &TreeNode{
			Label:    label,
			Kind:     NodeSchema,
			Depth:    1,
			Expanded: len(schemas) == 1 || s.Key.Name == "public" || s.Key.Name == "main" || s.Key.Name == "dbo",
		}

		var tables, views []*TreeNode
		for _, t := range cat.TablesIn(s.ID) {
			tn := &TreeNode{Label: t.Name, Kind: NodeTable, Depth: 3, Table: t.ID}
			if t.IsView() {
				tn.Kind = NodeView
			}
			for _, c := range t.Columns {
				tn.Children = append(tn.Children, &TreeNode{
					Label:  c.Name,
					Kind:   NodeColumn,
					Depth:  4,
					Table:  t.ID,
					Detail: c.TypeName,
					IsPK:   c.PartOfPK,
				})
			}
			if tn.Kind == NodeView {
				views = append(views, tn)
			} else {
				tables = append(tables, tn)
			}
		}
		sn.add("Tables", tables, true)
		sn.add("Views", views, false)

		var routines []*TreeNode
		for _, r := range cat.RoutinesIn(s.ID) {
			label := r.Name
			if r.SpecificName != r.Name {
				label = fmt.Sprintf("%s (%s)", r.Name, r.SpecificName)
			}
			routines = append(routines, &TreeNode{Label: label, Kind: NodeRoutine, Depth: 3, Routine: r.ID})
		}
		sn.add("Routines", routines, false)

		var sequences []*TreeNode
		for _, q := range cat.SequencesIn(s.ID) {
			sequences = append(sequences, &TreeNode{Label: q.Name, Kind: NodeSequence, Depth: 3})
		}
		sn.add("Sequences", sequences, false)

		var synonyms []*TreeNode
		for _, y := range cat.SynonymsIn(s.ID) {
			synonyms = append(synonyms, &TreeNode{Label: y.Name, Kind: NodeSynonym, Depth: 3, Detail: y.ReferencedName()})
		}
		sn.add("Synonyms", synonyms, false)

		root.Children = append(root.Children, sn)
	}
	link(root, nil)
	return []*TreeNode{root}
}

func link(n, parent *TreeNode) {
	n.parent = parent
	for _, c := range n.Children {
		link(c, n)
	}
}

// path returns the labels from the schema down to n, dot separated.
func (n *TreeNode) path() string {
	var parts []string
	for p := n; p != nil && p.Kind != NodeDatabase; p = p.parent {
		if p.Kind != NodeGroup {
			parts = append([]string{p.Label}, parts...)
		}
	}
	return strings.Join(parts, ".")
}

// add appends a group node holding children, if there are any.
func (n *TreeNode) add(label string, children []*TreeNode, expanded bool) {
	if len(children) == 0 {
		return
	}
	n.Children = append(n.Children, &TreeNode{
		Label:    fmt.Sprintf("%s (%d)", label, len(children)),
		Kind:     NodeGroup,
		Depth:    2,
		Expanded: expanded,
		Children: children,
	})
}

func (n *TreeNode) icon() string {
	if useSimpleIcons {
		switch n.Kind {
		case NodeDatabase:
			return "■ "
		case NodeSchema:
			return "▪ "
		case NodeGroup:
			return "≡ "
		case NodeTable:
			return "◆ "
		case NodeView:
			return "◇ "
		case NodeRoutine:
			return "ƒ "
		case NodeSequence:
			return "# "
		case NodeSynonym:
			return "→ "
		}
		return "  "
	}
	switch n.Kind {
	case NodeDatabase:
		return "🗄 "
	case NodeSchema:
		return "📁 "
	case NodeGroup:
		return "📋 "
	case NodeTable:
		return "📊 "
	case NodeView:
		return "📄 "
	case NodeRoutine:
		return "⚙ "
	case NodeSequence:
		return "🔢 "
	case NodeSynonym:
		return "🔗 "
	}
	return "  "
}
