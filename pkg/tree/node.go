// Package tree holds the editor-facing mirror of the document: a plain
// mutable tree of blocks and text leaves, and the local operations that
// change it.
package tree

import (
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// Run is a stretch of characters sharing the same marks.
type Run struct {
	Text  string       `json:"text"`
	Marks models.Marks `json:"marks,omitempty"`
}

// Node is one element of the local tree. Blocks have Children; text leaves
// have Runs and Type "text".
type Node struct {
	ID       models.ID
	Kind     models.Kind
	Type     string
	Data     map[string]any
	Children []*Node
	Runs     []Run
}

// Block builds a block node.
func Block(id models.ID, typ string, data map[string]any, children ...*Node) *Node {
	return &Node{ID: id, Kind: models.KindBlock, Type: typ, Data: data, Children: children}
}

// Text builds a text leaf.
func Text(id models.ID, runs ...Run) *Node {
	return &Node{ID: id, Kind: models.KindText, Type: constants.TextType, Runs: normalizeRuns(runs)}
}

// Plain is a run without marks.
func Plain(s string) Run {
	return Run{Text: s}
}

func (n *Node) IsText() bool {
	return n.Kind == models.KindText
}

// String returns the concatenated characters of a text leaf, or of every
// text leaf below a block.
func (n *Node) String() string {
	var sb strings.Builder
	n.Walk(func(c *Node) bool {
		for _, r := range c.Runs {
			sb.WriteString(r.Text)
		}
		return true
	})
	return sb.String()
}

// TextLen is the length of a text leaf in runes.
func (n *Node) TextLen() int {
	l := 0
	for _, r := range n.Runs {
		l += utf8.RuneCountInString(r.Text)
	}
	return l
}

// Walk visits n and its descendants depth-first, pre-order. Returning false
// from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// Clone deep-copies the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		ID:   n.ID,
		Kind: n.Kind,
		Type: n.Type,
		Data: models.CloneData(n.Data),
	}
	if n.Runs != nil {
		out.Runs = make([]Run, len(n.Runs))
		for i, r := range n.Runs {
			out.Runs[i] = Run{Text: r.Text, Marks: r.Marks.Clone()}
		}
	}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Equal compares two subtrees by identifier, type, data and content.
// Run boundaries do not matter, only the marks of each character.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.ID != other.ID || n.Kind != other.Kind || n.Type != other.Type {
		return false
	}
	if !dataEqual(n.Data, other.Data) {
		return false
	}
	a, b := normalizeRuns(n.Runs), normalizeRuns(other.Runs)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Text != b[i].Text || !a[i].Marks.Equal(b[i].Marks) {
			return false
		}
	}
	if len(n.Children) != len(other.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

func dataEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// normalizeRuns drops empty runs and merges neighbours with equal marks.
func normalizeRuns(runs []Run) []Run {
	var out []Run
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Marks.Equal(r.Marks) {
			out[n-1].Text += r.Text
			continue
		}
		out = append(out, Run{Text: r.Text, Marks: r.Marks.Clone()})
	}
	return out
}

// splitRuns returns runs with a boundary at offset and the index of the
// first run starting there.
func splitRuns(runs []Run, offset int) ([]Run, int) {
	pos := 0
	for i, r := range runs {
		l := utf8.RuneCountInString(r.Text)
		if offset == pos {
			return runs, i
		}
		if offset < pos+l {
			rs := []rune(r.Text)
			cut := offset - pos
			left := Run{Text: string(rs[:cut]), Marks: r.Marks}
			right := Run{Text: string(rs[cut:]), Marks: r.Marks.Clone()}
			out := make([]Run, 0, len(runs)+1)
			out = append(out, runs[:i]...)
			out = append(out, left, right)
			out = append(out, runs[i+1:]...)
			return out, i + 1
		}
		pos += l
	}
	return runs, len(runs)
}
