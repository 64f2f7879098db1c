package crdt

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// Transact runs fn as one atomic local transaction. Writes are checked and
// applied to a working copy of the document while fn runs, and reach the
// automerge document only once fn succeeds, as a single change. A
// transaction that leaves the document as it was commits nothing. On
// commit the events are delivered to observers and the encoded change to
// OnUpdate listeners.
func (d *Doc) Transact(origin models.Origin, fn func(Writer) error) error {
	d.mu.Lock()
	w := &writer{d: d, base: d.view, v: d.view.clone(), owned: make(map[models.ID]bool)}
	if err := fn(w); err != nil {
		d.mu.Unlock()
		return err
	}
	if !w.Changed() {
		d.mu.Unlock()
		return nil
	}

	var errs []error
	for _, c := range w.changes {
		if err := c(d.am); err != nil {
			errs = append(errs, err)
			break
		}
	}
	if _, err := d.am.Commit(origin.String()); err != nil {
		errs = append(errs, err)
	}
	update := d.am.SaveIncremental()

	after := d.materialize(d.am)
	events := diff(d.view, after)
	d.view = after
	d.pending = append(d.pending, pending{
		batch:  Batch{Origin: origin, Events: events},
		update: update,
		local:  true,
	})
	d.mu.Unlock()

	d.flush()
	if err := errors.Join(errs...); err != nil {
		// the automerge document keeps what was written before the failure
		return fmt.Errorf("transaction partially committed: %w", err)
	}
	return nil
}

// writer buffers the writes of one transaction. v is the working copy the
// reads see; changes replay the writes onto the automerge document.
type writer struct {
	d       *Doc
	base    *view
	v       *view
	owned   map[models.ID]bool
	changes []change

	checked bool
	changed bool
}

func (w *writer) Root() models.ID                       { return w.d.root }
func (w *writer) Exists(id models.ID) bool              { return w.v.reachable(id) }
func (w *writer) Kind(id models.ID) (models.Kind, bool) { return w.v.kindOf(id) }
func (w *writer) Parent(id models.ID) (models.ID, bool) { return w.v.parentOf(id) }
func (w *writer) Children(id models.ID) []models.ID     { return w.v.children(id) }
func (w *writer) Attrs(id models.ID) map[string]any     { return w.v.attrsOf(id) }
func (w *writer) Content(id models.ID) []delta.Entry    { return w.v.content(id) }
func (w *writer) TextLen(id models.ID) int              { return len(w.v.charsOf(id)) }

func (w *writer) SnapshotOf(id models.ID) (delta.Embed, bool) {
	if !w.v.reachable(id) {
		return delta.Embed{}, false
	}
	return w.v.snapshot(id), true
}

// Changed reports whether the writes so far change what readers observe.
func (w *writer) Changed() bool {
	if !w.checked {
		w.changed = len(diff(w.base, w.v)) > 0
		w.checked = true
	}
	return w.changed
}

func (w *writer) record(c change) {
	w.changes = append(w.changes, c)
	w.checked = false
}

// own returns a private copy of node id for the working view.
func (w *writer) own(id models.ID) *vnode {
	if !w.owned[id] {
		cp := *w.v.nodes[id]
		w.v.nodes[id] = &cp
		w.owned[id] = true
	}
	return w.v.nodes[id]
}

func (w *writer) InsertNode(parent models.ID, index int, e delta.Embed) error {
	p, ok := w.v.nodes[parent]
	if !ok || !w.v.reachable(parent) {
		return fmt.Errorf("%w: parent %s", constants.ErrNodeNotFound, parent)
	}
	if p.kind != models.KindBlock {
		return fmt.Errorf("%w: %s", constants.ErrNotBlock, parent)
	}

	e = delta.Normalize(e)
	id, kind, ok := identity(e)
	if !ok {
		return fmt.Errorf("%w: node has neither %s nor %s", constants.ErrMalformedDelta, constants.AttrBlockID, constants.AttrTextID)
	}

	if _, ok := w.v.nodes[id]; ok {
		if id == w.d.root {
			return constants.ErrRootImmutable
		}
		if w.v.isAncestor(id, parent) {
			return fmt.Errorf("%w: cannot move %s under itself", constants.ErrInvalidPath, id)
		}
		return w.place(parent, index, id)
	}

	attrs, err := w.d.normalizeMap(e.Attrs)
	if err != nil {
		return err
	}
	if attrs == nil {
		attrs = make(map[string]any)
	}
	if kind == models.KindBlock {
		attrs[constants.AttrBlockID] = string(id)
	} else {
		attrs[constants.AttrTextID] = string(id)
	}
	w.v.nodes[id] = &vnode{kind: kind, attrs: attrs}
	w.owned[id] = true
	w.record(w.d.createNode(id, kind, attrs))
	if err := w.place(parent, index, id); err != nil {
		return err
	}

	if kind == models.KindText {
		offset := 0
		for _, ent := range e.Delta {
			if !ent.IsText() {
				continue
			}
			if err := w.InsertText(id, offset, ent.Text, ent.Marks); err != nil {
				return err
			}
			offset += utf8.RuneCountInString(ent.Text)
		}
		return nil
	}
	i := 0
	for _, ent := range e.Delta {
		if ent.Embed == nil {
			continue
		}
		if err := w.InsertNode(id, i, *ent.Embed); err != nil {
			return err
		}
		i++
	}
	return nil
}

func identity(e delta.Embed) (models.ID, models.Kind, bool) {
	if id, ok := e.BlockID(); ok {
		return id, models.KindBlock, true
	}
	if id, ok := e.TextID(); ok {
		return id, models.KindText, true
	}
	return "", 0, false
}

// place attaches id as child index of parent, the index counted without id
// itself. The order key goes between the neighbours at that index.
func (w *writer) place(parent models.ID, index int, id models.ID) error {
	var siblings []models.ID
	for _, c := range w.v.kids[parent] {
		if c != id {
			siblings = append(siblings, c)
		}
	}
	if index < 0 || index > len(siblings) {
		return fmt.Errorf("%w: index %d in %s with %d children", constants.ErrOffsetOutOfRange, index, parent, len(siblings))
	}
	lo := ""
	if index > 0 {
		lo = w.v.nodes[siblings[index-1]].order
	}
	hi, bounded := "", false
	for _, s := range siblings[index:] {
		if o := w.v.nodes[s].order; o > lo {
			hi, bounded = o, true
			break
		}
	}
	key := between(lo, hi, bounded)

	w.detach(id)
	n := w.own(id)
	n.parent, n.order = parent, key
	w.v.kids[parent] = append(siblings[:len(siblings):len(siblings)], id)
	w.v.sortKids(parent)
	w.record(w.d.setPlacement(id, placement{Parent: string(parent), Order: key}))
	return nil
}

// detach drops id from its parent's child list in the working view.
func (w *writer) detach(id models.ID) {
	old, ok := w.v.parentOf(id)
	if !ok {
		return
	}
	var rest []models.ID
	for _, c := range w.v.kids[old] {
		if c != id {
			rest = append(rest, c)
		}
	}
	w.v.kids[old] = rest
}

func (w *writer) RemoveNode(id models.ID) error {
	if id == w.d.root {
		return constants.ErrRootImmutable
	}
	if _, ok := w.v.parentOf(id); !ok {
		return fmt.Errorf("%w: %s", constants.ErrNodeNotFound, id)
	}
	w.detach(id)
	n := w.own(id)
	n.parent, n.order = "", ""
	w.record(w.d.setPlacement(id, placement{}))
	return nil
}

func (w *writer) SetAttr(id models.ID, key string, value any) error {
	if _, ok := w.v.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", constants.ErrNodeNotFound, id)
	}
	v, err := w.d.normalize(value)
	if err != nil {
		return err
	}
	n := w.own(id)
	attrs := make(map[string]any, len(n.attrs)+1)
	for k, a := range n.attrs {
		attrs[k] = a
	}
	if v == nil {
		delete(attrs, key)
	} else {
		attrs[key] = v
	}
	n.attrs = attrs
	w.record(w.d.setAttr(id, key, v))
	return nil
}

func (w *writer) textRange(id models.ID, offset, length int) ([]char, error) {
	n, ok := w.v.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrNodeNotFound, id)
	}
	if n.kind != models.KindText {
		return nil, fmt.Errorf("%w: %s", constants.ErrNotText, id)
	}
	if offset < 0 || length < 0 || offset+length > len(n.chars) {
		return nil, fmt.Errorf("%w: [%d,%d) in %s of length %d", constants.ErrOffsetOutOfRange, offset, offset+length, id, len(n.chars))
	}
	return n.chars, nil
}

func (w *writer) InsertText(id models.ID, offset int, text string, marks models.Marks) error {
	chars, err := w.textRange(id, offset, 0)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	m, err := w.d.normalizeMap(map[string]any(models.Marks{}.Apply(marks)))
	if err != nil {
		return err
	}
	next := make([]char, 0, len(chars)+utf8.RuneCountInString(text))
	next = append(next, chars[:offset]...)
	for _, r := range text {
		next = append(next, char{r: r, marks: models.Marks(m).Clone()})
	}
	next = append(next, chars[offset:]...)
	w.own(id).chars = next
	w.record(w.d.insertChars(id, offset, text, m))
	return nil
}

func (w *writer) DeleteText(id models.ID, offset, length int) error {
	chars, err := w.textRange(id, offset, length)
	if err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	next := make([]char, 0, len(chars)-length)
	next = append(next, chars[:offset]...)
	next = append(next, chars[offset+length:]...)
	w.own(id).chars = next
	w.record(w.d.deleteChars(id, offset, length))
	return nil
}

func (w *writer) Format(id models.ID, offset, length int, marks models.Marks) error {
	chars, err := w.textRange(id, offset, length)
	if err != nil {
		return err
	}
	if len(marks) == 0 || length == 0 {
		return nil
	}
	patch := make(models.Marks, len(marks))
	for k, v := range marks {
		nv, err := w.d.normalize(v)
		if err != nil {
			return err
		}
		patch[k] = nv
	}
	next := append([]char(nil), chars...)
	for i := offset; i < offset+length; i++ {
		next[i].marks = next[i].marks.Apply(patch)
	}
	w.own(id).chars = next
	w.record(w.d.formatChars(id, offset, length, patch))
	return nil
}
