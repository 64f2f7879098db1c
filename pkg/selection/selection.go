// Package selection tracks the editor selection across tree mutations.
//
// A selection is kept in identifier form, which survives reordering. The
// path form is only computed on demand, for transforms that change the
// nesting depth of a subtree (indent and lift).
package selection

import (
	"fmt"
	"unicode/utf8"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/paths"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

// Point is a position inside a node. For text leaves Offset counts runes;
// for blocks it is 0.
type Point struct {
	ID     models.ID `json:"id"`
	Offset int       `json:"offset"`
}

// Selection is a range between an anchor and a focus point. The anchor is
// where the selection started, so it may come after the focus.
type Selection struct {
	Anchor Point `json:"anchor"`
	Focus  Point `json:"focus"`
}

// Collapsed returns a caret at p.
func Collapsed(p Point) Selection {
	return Selection{Anchor: p, Focus: p}
}

func (s Selection) IsCollapsed() bool {
	return s.Anchor == s.Focus
}

func (p Point) String() string {
	return fmt.Sprintf("%s:%d", p.ID, p.Offset)
}

func (s Selection) String() string {
	if s.IsCollapsed() {
		return s.Anchor.String()
	}
	return s.Anchor.String() + "-" + s.Focus.String()
}

// Validate checks that both points exist in t and that text offsets are in
// range.
func Validate(t *tree.Tree, s Selection) error {
	for _, p := range []Point{s.Anchor, s.Focus} {
		n, ok := t.Node(p.ID)
		if !ok {
			return fmt.Errorf("%w: %s", constants.ErrNodeNotFound, p.ID)
		}
		limit := 0
		if n.IsText() {
			limit = n.TextLen()
		}
		if p.Offset < 0 || p.Offset > limit {
			return fmt.Errorf("%w: %d in %s of length %d", constants.ErrOffsetOutOfRange, p.Offset, p.ID, limit)
		}
	}
	return nil
}

// EndOf returns the end of the last text leaf below id, or the start of id
// itself when it holds no text.
func EndOf(t *tree.Tree, id models.ID) Point {
	n, ok := t.Node(id)
	if !ok {
		return Point{ID: t.Root()}
	}
	var last *tree.Node
	n.Walk(func(c *tree.Node) bool {
		if c.IsText() {
			last = c
			return false
		}
		return true
	})
	if last == nil {
		return Point{ID: id}
	}
	return Point{ID: last.ID, Offset: last.TextLen()}
}

// Remapper carries a selection through a sequence of local operations. Each
// operation must be passed to Observe before it is applied to the tree.
type Remapper struct {
	points  [2]*Point
	removed [2][]models.ID
	gone    [2]bool
}

// NewRemapper starts remapping sel. A nil sel yields a remapper that tracks
// nothing.
func NewRemapper(sel *Selection) *Remapper {
	r := &Remapper{}
	if sel != nil {
		a, f := sel.Anchor, sel.Focus
		r.points = [2]*Point{&a, &f}
	}
	return r
}

// Observe adjusts the tracked points for op, which is about to be applied
// to t.
func (r *Remapper) Observe(t *tree.Tree, op tree.Op) {
	for i, p := range r.points {
		if p == nil {
			continue
		}
		switch o := op.(type) {
		case tree.InsertText:
			if p.ID == o.ID && o.Offset <= p.Offset {
				p.Offset += utf8.RuneCountInString(o.Text)
			}
		case tree.RemoveText:
			if p.ID == o.ID && p.Offset > o.Offset {
				p.Offset = max(o.Offset, p.Offset-o.Length)
			}
		case tree.RemoveNode:
			if r.gone[i] || !t.Has(p.ID) || !paths.Contains(t, o.ID, p.ID) {
				continue
			}
			// keep the chain of the first removal
			r.gone[i] = true
			r.removed[i] = paths.Ancestors(t, p.ID)
		}
	}
}

// Finish returns the remapped selection against t, or nil when nothing was
// tracked. A point whose node no longer exists collapses to the end of its
// nearest surviving ancestor.
func (r *Remapper) Finish(t *tree.Tree) *Selection {
	if r.points[0] == nil {
		return nil
	}
	var out [2]Point
	for i, p := range r.points {
		out[i] = r.finishPoint(t, i, *p)
	}
	return &Selection{Anchor: out[0], Focus: out[1]}
}

func (r *Remapper) finishPoint(t *tree.Tree, i int, p Point) Point {
	if n, ok := t.Node(p.ID); ok {
		limit := 0
		if n.IsText() {
			limit = n.TextLen()
		}
		p.Offset = min(max(p.Offset, 0), limit)
		return p
	}
	for _, anc := range r.removed[i] {
		if t.Has(anc) {
			return EndOf(t, anc)
		}
	}
	return EndOf(t, t.Root())
}
