// Package relation derives block-to-children relations from nested
// snapshots and converts between snapshots and local tree nodes.
//
// Every traversal here uses an explicit work stack instead of recursion so
// deeply nested documents cannot exhaust the goroutine stack.
package relation

import (
	"fmt"
	"sort"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

// Relations maps every block to its ordered children.
type Relations map[models.ID][]models.Child

// Build walks a snapshot depth-first. Entries carrying a blockId are
// recorded as block children and descended into; entries carrying a textId
// are recorded as text children and not descended into. Anonymous content
// is not indexed.
func Build(root delta.Embed) Relations {
	rel := make(Relations)
	if _, ok := root.BlockID(); !ok {
		return rel
	}
	stack := []delta.Embed{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		id, _ := cur.BlockID()

		children := make([]models.Child, 0, len(cur.Delta))
		var nested []delta.Embed
		for _, ent := range cur.Delta {
			if ent.Embed == nil {
				continue
			}
			if bid, ok := ent.Embed.BlockID(); ok {
				children = append(children, models.Child{ID: bid, Kind: models.KindBlock})
				nested = append(nested, *ent.Embed)
			} else if tid, ok := ent.Embed.TextID(); ok {
				children = append(children, models.Child{ID: tid, Kind: models.KindText})
			}
		}
		rel[id] = children
		for i := len(nested) - 1; i >= 0; i-- {
			stack = append(stack, nested[i])
		}
	}
	return rel
}

// FromTree derives the relations of a local subtree.
func FromTree(root *tree.Node) Relations {
	rel := make(Relations)
	root.Walk(func(n *tree.Node) bool {
		if n.IsText() {
			return false
		}
		children := make([]models.Child, len(n.Children))
		for i, c := range n.Children {
			children[i] = models.Child{ID: c.ID, Kind: c.Kind}
		}
		rel[n.ID] = children
		return true
	})
	return rel
}

// Equal reports whether two relation maps are identical.
func (r Relations) Equal(other Relations) bool {
	return len(r.Diff(other)) == 0
}

// Diff returns, sorted, the blocks whose children differ between r and
// other, including blocks present on one side only.
func (r Relations) Diff(other Relations) []models.ID {
	var out []models.ID
	for id, a := range r {
		b, ok := other[id]
		if !ok || !sameChildren(a, b) {
			out = append(out, id)
		}
	}
	for id := range other {
		if _, ok := r[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sameChildren(a, b []models.Child) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Materialize builds the local node for a snapshot, subtree included.
// Anonymous character runs are kept, folded as delta.Normalize does.
func Materialize(e delta.Embed) (*tree.Node, error) {
	type frame struct {
		embed delta.Embed
		node  *tree.Node
	}
	root := &tree.Node{}
	stack := []frame{{embed: e, node: root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id, ok := cur.embed.BlockID(); ok {
			norm := delta.Normalize(cur.embed)
			n := cur.node
			n.ID = id
			n.Kind = models.KindBlock
			n.Type = norm.BlockType()
			n.Data = models.CloneData(norm.Data())
			for _, ent := range norm.Delta {
				if ent.Embed == nil {
					continue
				}
				child := &tree.Node{}
				n.Children = append(n.Children, child)
				stack = append(stack, frame{embed: *ent.Embed, node: child})
			}
			continue
		}

		id, ok := cur.embed.TextID()
		if !ok {
			return nil, fmt.Errorf("%w: embedded node has neither %s nor %s", constants.ErrMalformedDelta, constants.AttrBlockID, constants.AttrTextID)
		}
		var runs []tree.Run
		for _, ent := range cur.embed.Delta {
			if ent.IsText() {
				runs = append(runs, tree.Run{Text: ent.Text, Marks: ent.Marks})
			}
		}
		*cur.node = *tree.Text(id, runs...)
		cur.node.Data = textData(cur.embed.Attrs)
	}
	return root, nil
}

func textData(attrs map[string]any) map[string]any {
	var out map[string]any
	for k, v := range attrs {
		if k == constants.AttrTextID || v == nil {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(attrs))
		}
		out[k] = v
	}
	return models.CloneData(out)
}

// Embed converts a local node back into a snapshot, subtree included.
func Embed(n *tree.Node) delta.Embed {
	type frame struct {
		node  *tree.Node
		embed *delta.Embed
	}
	var out delta.Embed
	stack := []frame{{node: n, embed: &out}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, e := cur.node, cur.embed

		if node.IsText() {
			e.Attrs = make(map[string]any, len(node.Data)+1)
			for k, v := range models.CloneData(node.Data) {
				e.Attrs[k] = v
			}
			e.Attrs[constants.AttrTextID] = string(node.ID)
			for _, r := range node.Runs {
				e.Delta = append(e.Delta, delta.Entry{Text: r.Text, Marks: r.Marks.Clone()})
			}
			continue
		}

		e.Attrs = map[string]any{
			constants.AttrBlockID:   string(node.ID),
			constants.AttrBlockType: node.Type,
		}
		if len(node.Data) > 0 {
			e.Attrs[constants.AttrData] = models.CloneData(node.Data)
		}
		if len(node.Children) == 0 {
			continue
		}
		e.Delta = make([]delta.Entry, len(node.Children))
		for i, c := range node.Children {
			child := &delta.Embed{}
			e.Delta[i] = delta.Entry{Embed: child}
			stack = append(stack, frame{node: c, embed: child})
		}
	}
	return out
}
