// Package paths converts between identifiers and positions in a tree.
//
// Paths are only meaningful for the tree state they were computed against:
// resolve a path, apply one operation, then resolve again.
package paths

import (
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// Hierarchy is the structural view both the local tree and the CRDT
// document expose.
type Hierarchy interface {
	Root() models.ID
	Parent(id models.ID) (models.ID, bool)
	Children(id models.ID) []models.ID
}

// PathOf returns the path of id, walking parents up to the root and
// consulting each parent's current children order.
func PathOf(h Hierarchy, id models.ID) (models.Path, error) {
	root := h.Root()
	var rev models.Path
	visited := make(map[models.ID]struct{})
	for cur := id; cur != root; {
		if _, ok := visited[cur]; ok {
			return nil, fmt.Errorf("%w: cycle at %s", constants.ErrInvalidPath, cur)
		}
		visited[cur] = struct{}{}
		parent, ok := h.Parent(cur)
		if !ok {
			return nil, fmt.Errorf("%w: %s", constants.ErrNodeNotFound, id)
		}
		idx := indexIn(h.Children(parent), cur)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s is not a child of %s", constants.ErrInvalidPath, cur, parent)
		}
		rev = append(rev, idx)
		cur = parent
	}
	path := make(models.Path, len(rev))
	for i, v := range rev {
		path[len(rev)-1-i] = v
	}
	return path, nil
}

// TargetAt returns the identifier at path. The empty path is the root.
func TargetAt(h Hierarchy, path models.Path) (models.ID, error) {
	cur := h.Root()
	for depth, idx := range path {
		children := h.Children(cur)
		if idx < 0 || idx >= len(children) {
			return "", fmt.Errorf("%w: %s has no child %d at depth %d", constants.ErrInvalidPath, cur, idx, depth)
		}
		cur = children[idx]
	}
	return cur, nil
}

// Ancestors returns the chain of ancestors of id, nearest first, ending at
// the root. A node without a parent has no ancestors.
func Ancestors(h Hierarchy, id models.ID) []models.ID {
	var out []models.ID
	visited := map[models.ID]struct{}{id: {}}
	for cur := id; ; {
		parent, ok := h.Parent(cur)
		if !ok {
			return out
		}
		if _, seen := visited[parent]; seen {
			return out
		}
		visited[parent] = struct{}{}
		out = append(out, parent)
		cur = parent
	}
}

// IndexOf returns the position of id within its parent, or -1.
func IndexOf(h Hierarchy, id models.ID) int {
	parent, ok := h.Parent(id)
	if !ok {
		return -1
	}
	return indexIn(h.Children(parent), id)
}

// Contains reports whether id is ancestor itself or lies below it.
func Contains(h Hierarchy, ancestor, id models.ID) bool {
	if ancestor == id {
		return true
	}
	for _, a := range Ancestors(h, id) {
		if a == ancestor {
			return true
		}
	}
	return false
}

func indexIn(ids []models.ID, id models.ID) int {
	for i, c := range ids {
		if c == id {
			return i
		}
	}
	return -1
}
