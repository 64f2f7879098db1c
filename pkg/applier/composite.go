package applier

import (
	"fmt"
	"unicode/utf8"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/crdt"
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/paths"
	"github.com/blockbind/blockbind.go/pkg/selection"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

// split divides a block in two. On a text run the run's block is split at
// the character offset: the characters after it go to a new run in a new
// block inserted right after, followed by the run's later siblings. On a
// block the children from index Offset on move to the new block.
func (a *Applier) split(w crdt.Writer, o tree.SplitNode) (bool, *selection.Point, error) {
	if !w.Exists(o.ID) {
		return false, nil, nil
	}
	if kind, _ := w.Kind(o.ID); kind == models.KindBlock {
		return a.splitBlock(w, o.ID, o.Offset)
	}

	parent, _ := w.Parent(o.ID)
	if parent == w.Root() {
		return false, nil, fmt.Errorf("%w: cannot split the root", constants.ErrRootImmutable)
	}
	l := w.TextLen(o.ID)
	at := clamp(o.Offset, l)
	siblings := w.Children(parent)
	idx := indexOf(siblings, o.ID)

	nb := a.newID()
	newText := a.newID()
	textAttrs := models.CloneData(w.Attrs(o.ID))
	if textAttrs == nil {
		textAttrs = make(map[string]any, 1)
	}
	textAttrs[constants.AttrTextID] = string(newText)
	tail := delta.Embed{Attrs: textAttrs, Delta: sliceEntries(w.Content(o.ID), at)}

	newBlock := blockEmbed(nb, w.Attrs(parent))
	newBlock.Delta = []delta.Entry{{Embed: &tail}}
	if err := insertAfter(w, parent, newBlock); err != nil {
		return false, nil, err
	}
	for k, s := range siblings[idx+1:] {
		if err := w.InsertNode(nb, k+1, ref(w, s)); err != nil {
			return false, nil, err
		}
	}
	if at < l {
		if err := w.DeleteText(o.ID, at, l-at); err != nil {
			return false, nil, err
		}
	}
	return true, &selection.Point{ID: newText}, nil
}

func (a *Applier) splitBlock(w crdt.Writer, id models.ID, offset int) (bool, *selection.Point, error) {
	if id == w.Root() {
		return false, nil, fmt.Errorf("%w: cannot split the root", constants.ErrRootImmutable)
	}
	children := w.Children(id)
	at := clamp(offset, len(children))

	nb := a.newID()
	if err := insertAfter(w, id, blockEmbed(nb, w.Attrs(id))); err != nil {
		return false, nil, err
	}
	for k, c := range children[at:] {
		if err := w.InsertNode(nb, k, ref(w, c)); err != nil {
			return false, nil, err
		}
	}
	if t, ok := firstText(w, nb); ok {
		return true, &selection.Point{ID: t}, nil
	}
	return true, nil, nil
}

// merge folds a node into its previous sibling. Two runs are joined; for two
// blocks the first run of the later block is appended to the last run of
// the earlier one and the remaining children move over.
func (a *Applier) merge(w crdt.Writer, o tree.MergeNode) (bool, *selection.Point, error) {
	if !w.Exists(o.ID) {
		return false, nil, nil
	}
	prev := o.WithPreviousID
	if prev.IsZero() {
		parent, _ := w.Parent(o.ID)
		siblings := w.Children(parent)
		idx := indexOf(siblings, o.ID)
		if idx <= 0 {
			return false, nil, fmt.Errorf("%w: %s has no previous sibling", constants.ErrInvalidPath, o.ID)
		}
		prev = siblings[idx-1]
	}
	if !w.Exists(prev) {
		return false, nil, nil
	}
	if paths.Contains(w, prev, o.ID) || paths.Contains(w, o.ID, prev) {
		return false, nil, fmt.Errorf("%w: cannot merge %s into %s", constants.ErrInvalidPath, o.ID, prev)
	}

	kp, _ := w.Kind(prev)
	kn, _ := w.Kind(o.ID)
	switch {
	case kp == models.KindText && kn == models.KindText:
		end := w.TextLen(prev)
		if err := appendText(w, prev, end, w.Content(o.ID)); err != nil {
			return false, nil, err
		}
		if err := w.RemoveNode(o.ID); err != nil {
			return false, nil, err
		}
		return true, &selection.Point{ID: prev, Offset: end}, nil
	case kp == models.KindBlock && kn == models.KindBlock:
		return a.mergeBlocks(w, prev, o.ID)
	default:
		return false, nil, fmt.Errorf("%w: cannot merge %s %s into %s %s", constants.ErrInvalidPath, kn, o.ID, kp, prev)
	}
}

func (a *Applier) mergeBlocks(w crdt.Writer, into, from models.ID) (bool, *selection.Point, error) {
	children := w.Children(from)
	var hint *selection.Point

	isText := func(id models.ID) bool {
		k, _ := w.Kind(id)
		return k == models.KindText
	}
	first := len(children) > 0 && isText(children[0])
	if pc := w.Children(into); len(pc) > 0 && isText(pc[len(pc)-1]) {
		last := pc[len(pc)-1]
		end := w.TextLen(last)
		hint = &selection.Point{ID: last, Offset: end}
		if first {
			if err := appendText(w, last, end, w.Content(children[0])); err != nil {
				return false, nil, err
			}
			children = children[1:]
		}
	} else if first {
		hint = &selection.Point{ID: children[0]}
	}

	base := len(w.Children(into))
	for k, c := range children {
		if err := w.InsertNode(into, base+k, ref(w, c)); err != nil {
			return false, nil, err
		}
	}
	if err := w.RemoveNode(from); err != nil {
		return false, nil, err
	}
	return true, hint, nil
}

func appendText(w crdt.Writer, id models.ID, at int, entries []delta.Entry) error {
	for _, ent := range entries {
		if !ent.IsText() {
			continue
		}
		if err := w.InsertText(id, at, ent.Text, ent.Marks); err != nil {
			return err
		}
		at += utf8.RuneCountInString(ent.Text)
	}
	return nil
}

// sliceEntries returns the character runs from rune offset at on.
func sliceEntries(entries []delta.Entry, at int) []delta.Entry {
	var out []delta.Entry
	pos := 0
	for _, ent := range entries {
		if !ent.IsText() {
			continue
		}
		rs := []rune(ent.Text)
		switch {
		case pos >= at:
			out = append(out, delta.Entry{Text: ent.Text, Marks: ent.Marks.Clone()})
		case pos+len(rs) > at:
			out = append(out, delta.Entry{Text: string(rs[at-pos:]), Marks: ent.Marks.Clone()})
		}
		pos += len(rs)
	}
	return out
}

// blockEmbed describes a new block that copies the type and data of a
// block with the given attributes.
func blockEmbed(id models.ID, attrs map[string]any) delta.Embed {
	e := delta.Embed{Attrs: map[string]any{constants.AttrBlockID: string(id)}}
	if typ, ok := attrs[constants.AttrBlockType].(string); ok && typ != "" {
		e.Attrs[constants.AttrBlockType] = typ
	}
	if data, ok := attrs[constants.AttrData].(map[string]any); ok && len(data) > 0 {
		e.Attrs[constants.AttrData] = models.CloneData(data)
	}
	return e
}

// ref describes an existing node by identifier only; inserting it moves it.
func ref(r crdt.Reader, id models.ID) delta.Embed {
	if k, _ := r.Kind(id); k == models.KindText {
		return delta.Embed{Attrs: map[string]any{constants.AttrTextID: string(id)}}
	}
	return delta.Embed{Attrs: map[string]any{constants.AttrBlockID: string(id)}}
}

func insertAfter(w crdt.Writer, sibling models.ID, e delta.Embed) error {
	parent, ok := w.Parent(sibling)
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrNodeNotFound, sibling)
	}
	return w.InsertNode(parent, indexOf(w.Children(parent), sibling)+1, e)
}

func firstText(r crdt.Reader, id models.ID) (models.ID, bool) {
	stack := []models.ID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if k, _ := r.Kind(cur); k == models.KindText {
			return cur, true
		}
		children := r.Children(cur)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return "", false
}
