package translate

import (
	"fmt"
	"unicode/utf8"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/crdt"
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/paths"
	"github.com/blockbind/blockbind.go/pkg/relation"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

// attribute maps blockType to the block's type and data to its data; every
// attribute of a text run other than textId maps to a data key.
func (r *run) attribute(ev crdt.AttributeChange) error {
	n, ok := r.t.Node(ev.ID)
	if !ok {
		return &UnresolvedError{ID: ev.ID}
	}
	op := tree.SetNodeData{ID: ev.ID}
	if n.IsText() {
		if ev.Key == constants.AttrTextID {
			return nil
		}
		op.Patch = map[string]any{ev.Key: ev.New}
		return r.apply(op)
	}

	switch ev.Key {
	case constants.AttrBlockType:
		typ, _ := ev.New.(string)
		if typ == "" || typ == n.Type {
			return nil
		}
		op.Type = typ
	case constants.AttrData:
		next, _ := ev.New.(map[string]any)
		patch := models.Marks(n.Data).Diff(next)
		if len(patch) == 0 {
			return nil
		}
		op.Patch = patch
	default:
		return nil
	}
	return r.apply(op)
}

func (r *run) text(ev crdt.TextChange) error {
	n, ok := r.t.Node(ev.ID)
	if !ok {
		return &UnresolvedError{ID: ev.ID}
	}
	if !n.IsText() {
		return malformed(ev.ID, "text change on a block")
	}
	if consumed, _ := ev.Delta.Lengths(); consumed > n.TextLen() {
		return malformed(ev.ID, "delta consumes %d characters, the run holds %d", consumed, n.TextLen())
	}

	pos := 0
	for _, op := range ev.Delta {
		switch o := op.(type) {
		case delta.Retain:
			if len(o.Marks) > 0 {
				if err := r.apply(tree.SetMark{ID: ev.ID, Offset: pos, Length: o.N, Marks: o.Marks.Clone()}); err != nil {
					return err
				}
			}
			pos += o.N
		case delta.Insert:
			if err := r.apply(tree.InsertText{ID: ev.ID, Offset: pos, Text: o.Text, Marks: o.Marks.Clone()}); err != nil {
				return err
			}
			pos += utf8.RuneCountInString(o.Text)
		case delta.Delete:
			if err := r.apply(tree.RemoveText{ID: ev.ID, Offset: pos, Length: o.N}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: text op %T", constants.ErrUnknownEvent, op)
		}
	}
	return nil
}

// children walks the delta with a cursor over the current local children.
// Removed identifiers that are no longer children of the block were already
// handled by an earlier event and are skipped, as are identifiers the same
// delta inserted earlier: those are reorders within the block. Inserted
// identifiers that already exist elsewhere are moves: the old copy is
// removed first.
func (r *run) children(ev crdt.ChildrenChange) error {
	n, ok := r.t.Node(ev.ID)
	if !ok {
		return &UnresolvedError{ID: ev.ID}
	}
	if n.IsText() {
		return malformed(ev.ID, "children change on a text run")
	}

	i := 0
	placed := make(map[models.ID]bool)
	for _, op := range ev.Delta {
		switch o := op.(type) {
		case delta.ChildRetain:
			i += o.N
			if l := len(r.t.Children(ev.ID)); i > l {
				return malformed(ev.ID, "retain to %d past %d children", i, l)
			}
		case delta.ChildDelete:
			shift, err := r.deleteChildren(ev.ID, o, i, placed)
			if err != nil {
				return err
			}
			i -= shift
		case delta.ChildInsert:
			for _, e := range o.Nodes {
				node, err := relation.Materialize(e)
				if err != nil {
					return malformed(ev.ID, "%v", err)
				}
				shift, err := r.evict(ev.ID, node, i)
				if err != nil {
					return err
				}
				i = min(i-shift, len(r.t.Children(ev.ID)))
				base, err := paths.PathOf(r.t, ev.ID)
				if err != nil {
					return err
				}
				if err := r.apply(tree.InsertNode{Node: node, Path: base.Child(i)}); err != nil {
					return err
				}
				placed[node.ID] = true
				i++
			}
		default:
			return fmt.Errorf("%w: children op %T", constants.ErrUnknownEvent, op)
		}
	}
	return nil
}

// deleteChildren returns how many removed children sat before the cursor.
func (r *run) deleteChildren(parent models.ID, o delta.ChildDelete, at int, placed map[models.ID]bool) (int, error) {
	if len(o.IDs) == 0 {
		for k := 0; k < o.N; k++ {
			children := r.t.Children(parent)
			if at >= len(children) {
				return 0, malformed(parent, "delete at %d past %d children", at, len(children))
			}
			if err := r.apply(tree.RemoveNode{ID: children[at]}); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}
	shift := 0
	for _, id := range o.IDs {
		if placed[id] {
			continue
		}
		if p, ok := r.t.Parent(id); !ok || p != parent {
			continue
		}
		if paths.IndexOf(r.t, id) < at-shift {
			shift++
		}
		if err := r.apply(tree.RemoveNode{ID: id}); err != nil {
			return 0, err
		}
	}
	return shift, nil
}

// evict removes every node of the incoming subtree that the local tree
// already holds and returns how many of them were children of parent
// before the cursor.
func (r *run) evict(parent models.ID, incoming *tree.Node, cursor int) (int, error) {
	var ids []models.ID
	incoming.Walk(func(n *tree.Node) bool {
		ids = append(ids, n.ID)
		return true
	})

	shift := 0
	for _, id := range ids {
		if !r.t.Has(id) {
			continue
		}
		if paths.Contains(r.t, id, parent) {
			return 0, malformed(parent, "inserting %s would nest it under itself", id)
		}
		if p, _ := r.t.Parent(id); p == parent && paths.IndexOf(r.t, id) < cursor-shift {
			shift++
		}
		if err := r.apply(tree.RemoveNode{ID: id}); err != nil {
			return 0, err
		}
	}
	return shift, nil
}
