// Package applier writes local editing operations into the shared document.
//
// The local tree is never touched here. Every operation becomes one
// transaction against the store, tagged with the caller's origin; the local
// tree catches up when the store echoes the transaction back as events.
// Applying is split in two steps so the caller can resolve paths against
// its tree under its own lock and then write without holding it:
//
//	req, err := a.Resolve(local, op)
//	out, err := a.Apply(origin, req, onHint)
package applier

import (
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/crdt"
	"github.com/blockbind/blockbind.go/pkg/logger"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/paths"
	"github.com/blockbind/blockbind.go/pkg/relation"
	"github.com/blockbind/blockbind.go/pkg/selection"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

// Local is the read-only view of the local tree used to resolve paths.
type Local interface {
	paths.Hierarchy
	Node(id models.ID) (*tree.Node, bool)
}

// Request is a local operation whose position has been resolved to
// identifiers. Only InsertNode carries a position.
type Request struct {
	Op tree.Op
	// Parent receives the inserted node.
	Parent models.ID
	// After is the sibling the node goes after; empty for the first slot.
	After models.ID
	// Index is the fallback position when After is gone from the store.
	Index int
}

// Outcome reports what a local operation did. Applied is false when the
// operation targets a node the store no longer holds, or when the store
// already holds its result; nothing is committed then.
type Outcome struct {
	Applied bool
	// Hint is where the caret belongs once the echo is applied, for
	// operations that decide it (split and merge).
	Hint *selection.Point
}

type Applier struct {
	store crdt.Store
	log   logger.Logger
	newID func() models.ID
}

type Option func(*Applier)

func WithLogger(l logger.Logger) Option {
	return func(a *Applier) {
		a.log = l
	}
}

// WithIDGenerator replaces models.NewID for identifiers minted by split
// and by inserts of nodes without one.
func WithIDGenerator(fn func() models.ID) Option {
	return func(a *Applier) {
		a.newID = fn
	}
}

func New(store crdt.Store, opts ...Option) *Applier {
	a := &Applier{
		store: store,
		log:   logger.Nop{},
		newID: models.NewID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// without hides one node from a hierarchy, so positions for a moved node
// are computed as if it had already been taken out.
type without struct {
	Local
	id models.ID
}

func (v without) Children(id models.ID) []models.ID {
	children := v.Local.Children(id)
	for i, c := range children {
		if c == v.id {
			return append(children[:i:i], children[i+1:]...)
		}
	}
	return children
}

// Resolve turns the path of an InsertNode into identifiers. The path is
// where the node sits once the operation is done, so for a node that
// already exists it is counted without the node itself.
func (a *Applier) Resolve(local Local, op tree.Op) (Request, error) {
	o, ok := op.(tree.InsertNode)
	if !ok {
		return Request{Op: op}, nil
	}
	if o.Node == nil {
		return Request{}, fmt.Errorf("%w: insert without a node", constants.ErrInvalidPath)
	}
	if len(o.Path) == 0 {
		return Request{}, fmt.Errorf("%w: cannot insert at the root path", constants.ErrInvalidPath)
	}
	var view Local = local
	if !o.Node.ID.IsZero() {
		view = without{Local: local, id: o.Node.ID}
	}
	parent, err := paths.TargetAt(view, o.Path.Parent())
	if err != nil {
		return Request{}, err
	}
	if n, _ := local.Node(parent); n != nil && n.IsText() {
		return Request{}, fmt.Errorf("%w: %s", constants.ErrNotBlock, parent)
	}
	children := view.Children(parent)
	idx := o.Path.Last()
	if idx < 0 || idx > len(children) {
		return Request{}, fmt.Errorf("%w: %s", constants.ErrInvalidPath, o.Path)
	}
	req := Request{Op: op, Parent: parent, Index: idx}
	if idx > 0 {
		req.After = children[idx-1]
	}
	return req, nil
}

// Apply writes req into the store as one transaction tagged with origin.
// onHint, when not nil, receives the caret hint before the transaction
// commits, so it is known by the time the echo is delivered.
func (a *Applier) Apply(origin models.Origin, req Request, onHint func(selection.Point)) (Outcome, error) {
	var out Outcome
	var stale bool
	err := a.store.Transact(origin, func(w crdt.Writer) error {
		applied, hint, err := a.write(w, req)
		if err != nil {
			return err
		}
		stale = !applied
		out = Outcome{Applied: applied && w.Changed(), Hint: hint}
		if out.Applied && hint != nil && onHint != nil {
			onHint(*hint)
		}
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to write to the store: %w", err)
	}
	switch {
	case stale:
		a.log.Info("local operation targets a node the store no longer holds", "op", req.Op, "origin", origin)
	case !out.Applied:
		a.log.Debug("local operation leaves the document unchanged", "op", req.Op, "origin", origin)
	}
	return out, nil
}

func (a *Applier) write(w crdt.Writer, req Request) (bool, *selection.Point, error) {
	switch o := req.Op.(type) {
	case tree.InsertNode:
		ok, err := a.insertNode(w, req, o)
		return ok, nil, err
	case tree.RemoveNode:
		if o.ID == w.Root() {
			return false, nil, constants.ErrRootImmutable
		}
		if !w.Exists(o.ID) {
			return false, nil, nil
		}
		return true, nil, w.RemoveNode(o.ID)
	case tree.SetNodeData:
		ok, err := a.setNodeData(w, o)
		return ok, nil, err
	case tree.InsertText:
		if !w.Exists(o.ID) {
			return false, nil, nil
		}
		at := clamp(o.Offset, w.TextLen(o.ID))
		return true, nil, w.InsertText(o.ID, at, o.Text, o.Marks)
	case tree.RemoveText:
		if !w.Exists(o.ID) {
			return false, nil, nil
		}
		from, to := textRange(w, o.ID, o.Offset, o.Length)
		if to == from {
			return true, nil, nil
		}
		return true, nil, w.DeleteText(o.ID, from, to-from)
	case tree.SetMark:
		if !w.Exists(o.ID) {
			return false, nil, nil
		}
		from, to := textRange(w, o.ID, o.Offset, o.Length)
		return true, nil, w.Format(o.ID, from, to-from, o.Marks)
	case tree.SplitNode:
		return a.split(w, o)
	case tree.MergeNode:
		return a.merge(w, o)
	default:
		return false, nil, fmt.Errorf("%w: %T", constants.ErrUnknownOp, req.Op)
	}
}

func (a *Applier) insertNode(w crdt.Writer, req Request, o tree.InsertNode) (bool, error) {
	if !w.Exists(req.Parent) {
		return false, nil
	}
	node := o.Node.Clone()
	node.Walk(func(n *tree.Node) bool {
		if n.ID.IsZero() {
			n.ID = a.newID()
		}
		return true
	})

	siblings := w.Children(req.Parent)
	for i, c := range siblings {
		if c == node.ID {
			siblings = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	idx := min(req.Index, len(siblings))
	if req.After.IsZero() {
		idx = 0
	} else if pos := indexOf(siblings, req.After); pos >= 0 {
		idx = pos + 1
	}
	return true, w.InsertNode(req.Parent, idx, relation.Embed(node))
}

func (a *Applier) setNodeData(w crdt.Writer, o tree.SetNodeData) (bool, error) {
	if !w.Exists(o.ID) {
		return false, nil
	}
	kind, _ := w.Kind(o.ID)
	if kind == models.KindText {
		patch := models.Marks(o.Patch)
		for _, k := range patch.Keys() {
			if k == constants.AttrTextID {
				continue
			}
			if err := w.SetAttr(o.ID, k, patch[k]); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	if o.Type != "" {
		if err := w.SetAttr(o.ID, constants.AttrBlockType, o.Type); err != nil {
			return true, err
		}
	}
	if len(o.Patch) == 0 {
		return true, nil
	}
	cur, _ := w.Attrs(o.ID)[constants.AttrData].(map[string]any)
	var next any
	if m := models.Marks(cur).Apply(o.Patch); len(m) > 0 {
		next = map[string]any(m)
	}
	return true, w.SetAttr(o.ID, constants.AttrData, next)
}

func clamp(v, limit int) int {
	return min(max(v, 0), limit)
}

func textRange(r crdt.Reader, id models.ID, offset, length int) (int, int) {
	l := r.TextLen(id)
	from := clamp(offset, l)
	return from, clamp(offset+max(length, 0), l)
}

func indexOf(ids []models.ID, id models.ID) int {
	for i, c := range ids {
		if c == id {
			return i
		}
	}
	return -1
}
