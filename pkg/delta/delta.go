// Package delta defines the typed change descriptions carried by CRDT
// mutation events: text deltas, children deltas and the nested snapshot
// entries used to describe whole subtrees.
package delta

import (
	"unicode/utf8"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// TextOp is one step of a text delta. It is one of Retain, Insert or Delete.
type TextOp interface {
	textOp()
}

// Retain skips N characters. When Marks is non-nil the retained characters
// are reformatted with Marks used as a patch (nil values remove a mark).
type Retain struct {
	N     int
	Marks models.Marks
}

// Insert adds Text at the cursor, formatted with Marks.
type Insert struct {
	Text  string
	Marks models.Marks
}

// Delete removes N characters at the cursor.
type Delete struct {
	N int
}

func (Retain) textOp() {}
func (Insert) textOp() {}
func (Delete) textOp() {}

// Text is an ordered text delta.
type Text []TextOp

// Lengths returns how many characters the delta consumes from the old
// content (retains plus deletes) and how many it produces.
func (d Text) Lengths() (consumed, produced int) {
	for _, op := range d {
		switch o := op.(type) {
		case Retain:
			consumed += o.N
			produced += o.N
		case Insert:
			produced += utf8.RuneCountInString(o.Text)
		case Delete:
			consumed += o.N
		}
	}
	return consumed, produced
}

// Compact merges adjacent operations of the same shape and drops empty ones.
func (d Text) Compact() Text {
	var out Text
	for _, op := range d {
		switch o := op.(type) {
		case Retain:
			if o.N <= 0 {
				continue
			}
			if n := len(out); n > 0 {
				if prev, ok := out[n-1].(Retain); ok && prev.Marks.Equal(o.Marks) && (prev.Marks == nil) == (o.Marks == nil) {
					prev.N += o.N
					out[n-1] = prev
					continue
				}
			}
		case Insert:
			if o.Text == "" {
				continue
			}
			if n := len(out); n > 0 {
				if prev, ok := out[n-1].(Insert); ok && prev.Marks.Equal(o.Marks) {
					prev.Text += o.Text
					out[n-1] = prev
					continue
				}
			}
		case Delete:
			if o.N <= 0 {
				continue
			}
			if n := len(out); n > 0 {
				if prev, ok := out[n-1].(Delete); ok {
					prev.N += o.N
					out[n-1] = prev
					continue
				}
			}
		}
		out = append(out, op)
	}
	// a trailing plain retain carries no information
	if n := len(out); n > 0 {
		if r, ok := out[n-1].(Retain); ok && r.Marks == nil {
			out = out[:n-1]
		}
	}
	return out
}

// ChildOp is one step of a children delta. It is one of ChildRetain,
// ChildInsert or ChildDelete.
type ChildOp interface {
	childOp()
}

// ChildRetain skips N children.
type ChildRetain struct {
	N int
}

// ChildInsert inserts full snapshots of new children at the cursor.
type ChildInsert struct {
	Nodes []Embed
}

// ChildDelete removes N children at the cursor. IDs lists the removed
// children in order so consumers can skip the ones already gone.
type ChildDelete struct {
	N   int
	IDs []models.ID
}

func (ChildRetain) childOp() {}
func (ChildInsert) childOp() {}
func (ChildDelete) childOp() {}

// Children is an ordered children delta.
type Children []ChildOp

// Embed is a snapshot of one CRDT node as it appears embedded in its
// parent's delta. Attrs carries blockId or textId, and for blocks the
// blockType and data attributes. Delta is the node's own content.
type Embed struct {
	Attrs map[string]any
	Delta []Entry
}

// Entry is one element of a node's content delta: either a run of
// formatted characters or an embedded child node.
type Entry struct {
	Text  string
	Marks models.Marks
	Embed *Embed
}

// IsText reports whether the entry is a character run.
func (e Entry) IsText() bool {
	return e.Embed == nil
}

// BlockID returns the blockId attribute, if any.
func (e Embed) BlockID() (models.ID, bool) {
	return e.idAttr(constants.AttrBlockID)
}

// TextID returns the textId attribute, if any.
func (e Embed) TextID() (models.ID, bool) {
	return e.idAttr(constants.AttrTextID)
}

func (e Embed) idAttr(key string) (models.ID, bool) {
	switch v := e.Attrs[key].(type) {
	case string:
		if v != "" {
			return models.ID(v), true
		}
	case models.ID:
		if v != "" {
			return v, true
		}
	}
	return "", false
}

// BlockType returns the blockType attribute or the empty string.
func (e Embed) BlockType() string {
	s, _ := e.Attrs[constants.AttrBlockType].(string)
	return s
}

// Data returns the data attribute when it is a map.
func (e Embed) Data() map[string]any {
	switch v := e.Attrs[constants.AttrData].(type) {
	case map[string]any:
		return v
	case models.Marks:
		return v
	}
	return nil
}

// PlainText concatenates the character runs of the embed's delta.
func (e Embed) PlainText() string {
	var s string
	for _, ent := range e.Delta {
		if ent.IsText() {
			s += ent.Text
		}
	}
	return s
}
