package translate

import (
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/paths"
	"github.com/blockbind/blockbind.go/pkg/relation"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

// Check compares the local tree with the store snapshot and resyncs every
// node whose type, data, content or children list differs.
func (tr *Translator) Check(t *tree.Tree, observe Observer) Result {
	r := tr.newRun(t, observe)
	snap, _ := tr.store.SnapshotOf(tr.store.Root())
	want, err := relation.Materialize(snap)
	if err != nil {
		tr.log.Error("failed to materialize the store snapshot", "error", err)
		return r.res
	}

	var stale []models.ID
	want.Walk(func(n *tree.Node) bool {
		if have, ok := t.Node(n.ID); ok && sameNode(have, n) {
			return true
		}
		stale = append(stale, n.ID)
		return false
	})
	for _, id := range stale {
		r.resync(id)
	}
	return r.res
}

// sameNode compares two nodes without descending into their children.
func sameNode(a, b *tree.Node) bool {
	strip := func(n *tree.Node) *tree.Node {
		return &tree.Node{ID: n.ID, Kind: n.Kind, Type: n.Type, Data: n.Data, Runs: n.Runs}
	}
	if !strip(a).Equal(strip(b)) || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if a.Children[i].ID != b.Children[i].ID {
			return false
		}
	}
	return true
}

func (r *run) resync(id models.ID) {
	target := id
	if !r.t.Has(id) {
		target = ""
		if r.tr.store.Exists(id) {
			for _, anc := range paths.Ancestors(r.tr.store, id) {
				if r.t.Has(anc) {
					target = anc
					break
				}
			}
		}
		if target == "" {
			r.tr.log.Debug("nothing to resync", "id", id)
			return
		}
	}

	r.tr.log.Warn("resyncing subtree from the store", "id", target)
	if err := r.rebuild(target); err != nil {
		r.tr.log.Error("failed to resync subtree", "id", target, "error", err)
		return
	}
	r.res.Resynced = append(r.res.Resynced, target)
}

// rebuild replaces the local subtree of id with the store's. Nodes of the
// new subtree that the local tree holds elsewhere are removed first.
func (r *run) rebuild(id models.ID) error {
	root := r.t.Root()
	snap, ok := r.tr.store.SnapshotOf(id)
	if !ok {
		if id == root {
			return fmt.Errorf("%w: store has no root %s", constants.ErrNodeNotFound, id)
		}
		return r.apply(tree.RemoveNode{ID: id})
	}
	want, err := relation.Materialize(snap)
	if err != nil {
		return err
	}

	var clashes []models.ID
	want.Walk(func(n *tree.Node) bool {
		if n.ID != id && r.t.Has(n.ID) && !paths.Contains(r.t, id, n.ID) {
			clashes = append(clashes, n.ID)
		}
		return true
	})
	for _, c := range clashes {
		if !r.t.Has(c) {
			continue
		}
		if paths.Contains(r.t, c, id) {
			// the store nests an ancestor of id below it
			return r.rebuild(root)
		}
		if err := r.apply(tree.RemoveNode{ID: c}); err != nil {
			return err
		}
	}

	cur, _ := r.t.Node(id)
	if cur.IsText() || want.IsText() {
		if id == root {
			return fmt.Errorf("%w: %s", constants.ErrNotBlock, id)
		}
		at, err := paths.PathOf(r.t, id)
		if err != nil {
			return err
		}
		if err := r.apply(tree.RemoveNode{ID: id}); err != nil {
			return err
		}
		return r.apply(tree.InsertNode{Node: want, Path: at})
	}

	for _, c := range r.t.Children(id) {
		if err := r.apply(tree.RemoveNode{ID: c}); err != nil {
			return err
		}
	}
	if patch := models.Marks(cur.Data).Diff(want.Data); cur.Type != want.Type || len(patch) > 0 {
		if err := r.apply(tree.SetNodeData{ID: id, Type: want.Type, Patch: patch}); err != nil {
			return err
		}
	}
	base, err := paths.PathOf(r.t, id)
	if err != nil {
		return err
	}
	for i, c := range want.Children {
		if err := r.apply(tree.InsertNode{Node: c, Path: base.Child(i)}); err != nil {
			return err
		}
	}
	return nil
}
