package tree

import (
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/models"
)

// Op is a local operation. It is one of InsertNode, RemoveNode,
// SetNodeData, InsertText, RemoveText, SetMark, SplitNode or MergeNode.
type Op interface {
	// Target is the node the operation is about.
	Target() models.ID
	op()
}

// InsertNode inserts Node at Path; Path's last index is the position
// within the parent addressed by the rest of the path.
type InsertNode struct {
	Node *Node
	Path models.Path
}

// RemoveNode removes a node and its subtree.
type RemoveNode struct {
	ID models.ID
}

// SetNodeData changes a node's type (when Type is not empty) and patches
// its data. Nil values in Patch remove keys.
type SetNodeData struct {
	ID    models.ID
	Type  string
	Patch map[string]any
}

// InsertText inserts Text at Offset with exactly the given Marks.
type InsertText struct {
	ID     models.ID
	Offset int
	Text   string
	Marks  models.Marks
}

// RemoveText removes Length characters at Offset.
type RemoveText struct {
	ID     models.ID
	Offset int
	Length int
}

// SetMark patches the marks of Length characters at Offset. Nil values
// remove marks.
type SetMark struct {
	ID     models.ID
	Offset int
	Length int
	Marks  models.Marks
}

// SplitNode splits a block in two. ID names either a text leaf, in which
// case its parent block is split at character Offset of that leaf, or a
// block, which is split before child index Offset.
type SplitNode struct {
	ID     models.ID
	Offset int
}

// MergeNode merges a node into its previous sibling WithPreviousID. When
// WithPreviousID is empty the current previous sibling is used.
type MergeNode struct {
	ID             models.ID
	WithPreviousID models.ID
}

func (o InsertNode) Target() models.ID {
	if o.Node == nil {
		return ""
	}
	return o.Node.ID
}
func (o RemoveNode) Target() models.ID  { return o.ID }
func (o SetNodeData) Target() models.ID { return o.ID }
func (o InsertText) Target() models.ID  { return o.ID }
func (o RemoveText) Target() models.ID  { return o.ID }
func (o SetMark) Target() models.ID     { return o.ID }
func (o SplitNode) Target() models.ID   { return o.ID }
func (o MergeNode) Target() models.ID   { return o.ID }

func (InsertNode) op()  {}
func (RemoveNode) op()  {}
func (SetNodeData) op() {}
func (InsertText) op()  {}
func (RemoveText) op()  {}
func (SetMark) op()     {}
func (SplitNode) op()   {}
func (MergeNode) op()   {}

func (o InsertNode) String() string {
	return fmt.Sprintf("insert_node(%s at %s)", o.Target(), o.Path)
}

func (o RemoveNode) String() string {
	return fmt.Sprintf("remove_node(%s)", o.ID)
}

func (o SetNodeData) String() string {
	return fmt.Sprintf("set_node_data(%s, %q, %v)", o.ID, o.Type, o.Patch)
}

func (o InsertText) String() string {
	return fmt.Sprintf("insert_text(%s@%d, %q)", o.ID, o.Offset, o.Text)
}

func (o RemoveText) String() string {
	return fmt.Sprintf("remove_text(%s@%d, %d)", o.ID, o.Offset, o.Length)
}

func (o SetMark) String() string {
	return fmt.Sprintf("set_mark(%s@%d, %d, %v)", o.ID, o.Offset, o.Length, o.Marks)
}

func (o SplitNode) String() string {
	return fmt.Sprintf("split_node(%s@%d)", o.ID, o.Offset)
}

func (o MergeNode) String() string {
	return fmt.Sprintf("merge_node(%s into %s)", o.ID, o.WithPreviousID)
}
