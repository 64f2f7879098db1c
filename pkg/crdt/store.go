// Package crdt provides the shared document store consumed by the binding:
// the Store contract, mutation events, and Doc, a block tree kept in an
// automerge document that implements it.
package crdt

import (
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// Reader is the read side of a document. Children and Parent only report
// live placements, so a removed node has no parent and appears in no
// children list.
type Reader interface {
	Root() models.ID
	// Exists reports whether id is attached to the root.
	Exists(id models.ID) bool
	Kind(id models.ID) (models.Kind, bool)
	Parent(id models.ID) (models.ID, bool)
	Children(id models.ID) []models.ID
	Attrs(id models.ID) map[string]any
	// Content returns the formatted runs of a text node.
	Content(id models.ID) []delta.Entry
	TextLen(id models.ID) int
	SnapshotOf(id models.ID) (delta.Embed, bool)
}

// Writer mutates a document inside a transaction.
type Writer interface {
	Reader
	// InsertNode places node under parent at index. When the node's
	// identifier already exists the node is moved there and keeps its
	// content; index is then counted without the node itself.
	InsertNode(parent models.ID, index int, node delta.Embed) error
	RemoveNode(id models.ID) error
	// SetAttr sets one attribute; a nil value removes it.
	SetAttr(id models.ID, key string, value any) error
	InsertText(id models.ID, offset int, text string, marks models.Marks) error
	DeleteText(id models.ID, offset, length int) error
	// Format patches the marks of a character range; nil values remove marks.
	Format(id models.ID, offset, length int, marks models.Marks) error
	// Changed reports whether the writes so far change what readers
	// observe. A transaction that changes nothing commits nothing and
	// emits no events.
	Changed() bool
}

// Store is the shared document the binding observes and writes to.
type Store interface {
	Reader
	Snapshot() delta.Embed
	// Transact runs fn as one atomic transaction tagged with origin. If fn
	// returns an error nothing it wrote is kept and no events are emitted.
	// fn must not call Transact.
	Transact(origin models.Origin, fn func(Writer) error) error
	// Observe registers fn for every committed batch of events and returns
	// a function that removes it.
	Observe(fn func(Batch)) func()
}
