package crdt

import (
	"sort"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/models"
)

type char struct {
	r     rune
	marks models.Marks
}

type vnode struct {
	kind models.Kind
	// parent is empty for a removed node
	parent models.ID
	order  string
	attrs  map[string]any
	chars  []char
}

// view is the decoded state of the automerge document. Every node ever
// created is kept; a node exists for readers only while its chain of
// parents reaches the root.
type view struct {
	root  models.ID
	nodes map[models.ID]*vnode
	// kids lists the children of every parent, sorted by order key
	kids map[models.ID][]models.ID
}

func newView(root models.ID) *view {
	v := &view{
		root:  root,
		nodes: make(map[models.ID]*vnode),
		kids:  make(map[models.ID][]models.ID),
	}
	v.nodes[root] = &vnode{
		kind: models.KindBlock,
		attrs: map[string]any{
			constants.AttrBlockID:   string(root),
			constants.AttrBlockType: constants.DefaultRootType,
		},
	}
	return v
}

// clone copies the indexes. Nodes and child lists are shared and must be
// replaced, never mutated, by the copy's owner.
func (v *view) clone() *view {
	c := &view{
		root:  v.root,
		nodes: make(map[models.ID]*vnode, len(v.nodes)),
		kids:  make(map[models.ID][]models.ID, len(v.kids)),
	}
	for id, n := range v.nodes {
		c.nodes[id] = n
	}
	for id, ids := range v.kids {
		c.kids[id] = ids
	}
	return c
}

func (v *view) less(a, b models.ID) bool {
	oa, ob := v.nodes[a].order, v.nodes[b].order
	if oa != ob {
		return oa < ob
	}
	return a < b
}

func (v *view) sortKids(parent models.ID) {
	ids := v.kids[parent]
	sort.Slice(ids, func(i, j int) bool { return v.less(ids[i], ids[j]) })
}

// index rebuilds the child lists from the placements.
func (v *view) index() {
	v.kids = make(map[models.ID][]models.ID)
	for id, n := range v.nodes {
		if id == v.root || n.parent == "" {
			continue
		}
		v.kids[n.parent] = append(v.kids[n.parent], id)
	}
	for parent := range v.kids {
		v.sortKids(parent)
	}
}

func (v *view) kindOf(id models.ID) (models.Kind, bool) {
	n, ok := v.nodes[id]
	if !ok {
		return 0, false
	}
	return n.kind, true
}

func (v *view) parentOf(id models.ID) (models.ID, bool) {
	n, ok := v.nodes[id]
	if !ok || n.parent == "" {
		return "", false
	}
	return n.parent, true
}

func (v *view) reachable(id models.ID) bool {
	visited := make(map[models.ID]struct{})
	for cur := id; cur != v.root; {
		if _, ok := visited[cur]; ok {
			return false
		}
		visited[cur] = struct{}{}
		p, ok := v.parentOf(cur)
		if !ok {
			return false
		}
		if k, ok := v.kindOf(p); !ok || k != models.KindBlock {
			return false
		}
		cur = p
	}
	return true
}

// isAncestor reports whether a is b or one of b's ancestors.
func (v *view) isAncestor(a, b models.ID) bool {
	visited := make(map[models.ID]struct{})
	for cur := b; ; {
		if cur == a {
			return true
		}
		if _, ok := visited[cur]; ok {
			return false
		}
		visited[cur] = struct{}{}
		p, ok := v.parentOf(cur)
		if !ok {
			return false
		}
		cur = p
	}
}

func (v *view) children(id models.ID) []models.ID {
	n, ok := v.nodes[id]
	if !ok || n.kind != models.KindBlock || len(v.kids[id]) == 0 {
		return nil
	}
	return append([]models.ID(nil), v.kids[id]...)
}

func (v *view) attrsOf(id models.ID) map[string]any {
	n, ok := v.nodes[id]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(n.attrs))
	for k, val := range n.attrs {
		out[k] = cloneAny(val)
	}
	return out
}

func (v *view) charsOf(id models.ID) []char {
	n, ok := v.nodes[id]
	if !ok || n.kind != models.KindText {
		return nil
	}
	return n.chars
}

func (v *view) content(id models.ID) []delta.Entry {
	var out []delta.Entry
	for _, c := range v.charsOf(id) {
		if n := len(out); n > 0 && out[n-1].Marks.Equal(c.marks) {
			out[n-1].Text += string(c.r)
			continue
		}
		out = append(out, delta.Entry{Text: string(c.r), Marks: c.marks.Clone()})
	}
	return out
}

func (v *view) snapshot(id models.ID) delta.Embed {
	e := delta.Embed{Attrs: v.attrsOf(id)}
	if v.nodes[id].kind == models.KindText {
		e.Delta = v.content(id)
		return e
	}
	for _, child := range v.children(id) {
		c := v.snapshot(child)
		e.Delta = append(e.Delta, delta.Entry{Embed: &c})
	}
	return e
}
