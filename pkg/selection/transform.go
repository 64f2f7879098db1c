package selection

import (
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/paths"
)

// PathPoint is a Point in path form.
type PathPoint struct {
	Path   models.Path
	Offset int
}

// PathRange is a Selection in path form. It is only valid for the tree
// state it was computed against.
type PathRange struct {
	Anchor PathPoint
	Focus  PathPoint
}

// ToPaths resolves the identifiers of s against h.
func ToPaths(h paths.Hierarchy, s Selection) (PathRange, error) {
	a, err := paths.PathOf(h, s.Anchor.ID)
	if err != nil {
		return PathRange{}, err
	}
	f, err := paths.PathOf(h, s.Focus.ID)
	if err != nil {
		return PathRange{}, err
	}
	return PathRange{
		Anchor: PathPoint{Path: a, Offset: s.Anchor.Offset},
		Focus:  PathPoint{Path: f, Offset: s.Focus.Offset},
	}, nil
}

// FromPaths resolves the paths of r against h.
func FromPaths(h paths.Hierarchy, r PathRange) (Selection, error) {
	a, err := paths.TargetAt(h, r.Anchor.Path)
	if err != nil {
		return Selection{}, err
	}
	f, err := paths.TargetAt(h, r.Focus.Path)
	if err != nil {
		return Selection{}, err
	}
	return Selection{
		Anchor: Point{ID: a, Offset: r.Anchor.Offset},
		Focus:  Point{ID: f, Offset: r.Focus.Offset},
	}, nil
}

// CommonAncestor returns the longest path shared by anchor and focus.
func CommonAncestor(r PathRange) models.Path {
	return models.CommonPrefix(r.Anchor.Path, r.Focus.Path)
}

// Within reports whether both points of r lie at or below prefix.
func (r PathRange) Within(prefix models.Path) bool {
	return r.Anchor.Path.HasPrefix(prefix) && r.Focus.Path.HasPrefix(prefix)
}

// Rebase moves r from the subtree at from to the subtree at to: each point
// keeps its path relative to from, reapplied under to.
func Rebase(r PathRange, from, to models.Path) (PathRange, error) {
	if !r.Within(from) {
		return PathRange{}, fmt.Errorf("%w: %s", constants.ErrSelectionOutsideSubtree, from)
	}
	rebase := func(p PathPoint) PathPoint {
		return PathPoint{Path: to.Join(p.Path[len(from):]), Offset: p.Offset}
	}
	return PathRange{Anchor: rebase(r.Anchor), Focus: rebase(r.Focus)}, nil
}

// RebaseCommon rebases r from its common ancestor to a new common ancestor
// path.
func RebaseCommon(r PathRange, to models.Path) (PathRange, error) {
	return Rebase(r, CommonAncestor(r), to)
}

// IndentTarget returns where id goes when it is nested one level deeper:
// the end of its previous sibling's children. The path is valid for the
// tree with id already removed.
func IndentTarget(h paths.Hierarchy, id models.ID) (models.Path, error) {
	if id == h.Root() {
		return nil, fmt.Errorf("%w: %s is the root", constants.ErrCannotIndent, id)
	}
	p, err := paths.PathOf(h, id)
	if err != nil {
		return nil, err
	}
	if p.Last() == 0 {
		return nil, fmt.Errorf("%w: %s has no previous sibling", constants.ErrCannotIndent, id)
	}
	parent, _ := h.Parent(id)
	prev := h.Children(parent)[p.Last()-1]
	return p.Parent().Child(p.Last() - 1).Child(len(h.Children(prev))), nil
}

// LiftTarget returns where id goes when it is moved one level shallower:
// right after its parent. The path is valid for the tree with id already
// removed.
func LiftTarget(h paths.Hierarchy, id models.ID) (models.Path, error) {
	parent, ok := h.Parent(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no parent", constants.ErrCannotLift, id)
	}
	if parent == h.Root() {
		return nil, fmt.Errorf("%w: %s is already at the top level", constants.ErrCannotLift, id)
	}
	pp, err := paths.PathOf(h, parent)
	if err != nil {
		return nil, err
	}
	return pp.Parent().Child(pp.Last() + 1), nil
}
