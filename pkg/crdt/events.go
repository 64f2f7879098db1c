package crdt

import (
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// Event is a mutation event. It is one of AttributeChange, TextChange or
// ChildrenChange.
type Event interface {
	Target() models.ID
	event()
}

// AttributeChange reports that one attribute of a node changed. A nil Old
// means the attribute was added, a nil New that it was removed.
type AttributeChange struct {
	ID  models.ID
	Key string
	Old any
	New any
}

// TextChange reports a change of a text node's characters or marks.
type TextChange struct {
	ID    models.ID
	Delta delta.Text
}

// ChildrenChange reports a change of a block's ordered children.
type ChildrenChange struct {
	ID    models.ID
	Delta delta.Children
}

func (e AttributeChange) Target() models.ID { return e.ID }
func (e TextChange) Target() models.ID      { return e.ID }
func (e ChildrenChange) Target() models.ID  { return e.ID }

func (AttributeChange) event() {}
func (TextChange) event()      {}
func (ChildrenChange) event()  {}

// Batch is the ordered set of events produced by one transaction.
type Batch struct {
	Origin models.Origin
	Events []Event
}
