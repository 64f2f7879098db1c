package tree

import (
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/paths"
)

// Tree is the local tree with an identifier index. It is not safe for
// concurrent use.
type Tree struct {
	root   *Node
	index  map[models.ID]*Node
	parent map[models.ID]models.ID
}

// New indexes root and its subtree. The tree takes ownership of root.
func New(root *Node) (*Tree, error) {
	t := &Tree{
		root:   root,
		index:  make(map[models.ID]*Node),
		parent: make(map[models.ID]models.ID),
	}
	if err := t.register(root, ""); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) register(n *Node, parent models.ID) error {
	seen := make(map[models.ID]struct{})
	var err error
	n.Walk(func(c *Node) bool {
		_, inTree := t.index[c.ID]
		_, inSubtree := seen[c.ID]
		if inTree || inSubtree {
			err = fmt.Errorf("%w: %s", constants.ErrDuplicateID, c.ID)
		}
		seen[c.ID] = struct{}{}
		return err == nil
	})
	if err != nil {
		return err
	}

	type entry struct {
		node   *Node
		parent models.ID
	}
	stack := []entry{{node: n, parent: parent}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.index[cur.node.ID] = cur.node
		if cur.parent != "" {
			t.parent[cur.node.ID] = cur.parent
		}
		for _, c := range cur.node.Children {
			stack = append(stack, entry{node: c, parent: cur.node.ID})
		}
	}
	return nil
}

func (t *Tree) unregister(n *Node) {
	n.Walk(func(c *Node) bool {
		if t.index[c.ID] == c {
			delete(t.index, c.ID)
			delete(t.parent, c.ID)
		}
		return true
	})
}

func (t *Tree) Root() models.ID {
	return t.root.ID
}

// RootNode returns the root. Callers must not modify it.
func (t *Tree) RootNode() *Node {
	return t.root
}

// Node returns the node with id. Callers must not modify it.
func (t *Tree) Node(id models.ID) (*Node, bool) {
	n, ok := t.index[id]
	return n, ok
}

func (t *Tree) Has(id models.ID) bool {
	_, ok := t.index[id]
	return ok
}

func (t *Tree) Parent(id models.ID) (models.ID, bool) {
	p, ok := t.parent[id]
	return p, ok
}

func (t *Tree) Children(id models.ID) []models.ID {
	n, ok := t.index[id]
	if !ok || len(n.Children) == 0 {
		return nil
	}
	out := make([]models.ID, len(n.Children))
	for i, c := range n.Children {
		out[i] = c.ID
	}
	return out
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int {
	return len(t.index)
}

// Clone deep-copies the tree.
func (t *Tree) Clone() *Tree {
	c, _ := New(t.root.Clone())
	return c
}

// Equal compares two trees structurally by identifier.
func (t *Tree) Equal(other *Tree) bool {
	return t.root.Equal(other.root)
}

// Apply performs one primitive operation. Composite operations return
// constants.ErrCompositeOp.
func (t *Tree) Apply(op Op) error {
	switch o := op.(type) {
	case InsertNode:
		return t.insertNode(o)
	case RemoveNode:
		return t.removeNode(o)
	case SetNodeData:
		return t.setNodeData(o)
	case InsertText:
		return t.insertText(o)
	case RemoveText:
		return t.removeText(o)
	case SetMark:
		return t.setMark(o)
	case SplitNode, MergeNode:
		return fmt.Errorf("%w: %v", constants.ErrCompositeOp, op)
	default:
		return fmt.Errorf("%w: %T", constants.ErrUnknownOp, op)
	}
}

func (t *Tree) insertNode(o InsertNode) error {
	if o.Node == nil || o.Node.ID.IsZero() {
		return fmt.Errorf("%w: node without identifier", constants.ErrInvalidPath)
	}
	if len(o.Path) == 0 {
		return fmt.Errorf("%w: cannot insert at the root path", constants.ErrInvalidPath)
	}
	parentID, err := paths.TargetAt(t, o.Path.Parent())
	if err != nil {
		return err
	}
	parent := t.index[parentID]
	if parent.IsText() {
		return fmt.Errorf("%w: %s", constants.ErrNotBlock, parentID)
	}
	idx := o.Path.Last()
	if idx < 0 || idx > len(parent.Children) {
		return fmt.Errorf("%w: %s", constants.ErrInvalidPath, o.Path)
	}
	if err := t.register(o.Node, parentID); err != nil {
		return err
	}
	parent.Children = append(parent.Children, nil)
	copy(parent.Children[idx+1:], parent.Children[idx:])
	parent.Children[idx] = o.Node
	return nil
}

func (t *Tree) removeNode(o RemoveNode) error {
	if o.ID == t.root.ID {
		return constants.ErrRootImmutable
	}
	n, ok := t.index[o.ID]
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrNodeNotFound, o.ID)
	}
	parent := t.index[t.parent[o.ID]]
	idx := indexOfNode(parent.Children, o.ID)
	parent.Children = append(parent.Children[:idx:idx], parent.Children[idx+1:]...)
	t.unregister(n)
	return nil
}

func (t *Tree) setNodeData(o SetNodeData) error {
	n, ok := t.index[o.ID]
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrNodeNotFound, o.ID)
	}
	if o.Type != "" && !n.IsText() {
		n.Type = o.Type
	}
	if len(o.Patch) > 0 {
		n.Data = models.CloneData(models.Marks(n.Data).Apply(o.Patch))
	}
	return nil
}

func (t *Tree) textNode(id models.ID, offset, length int) (*Node, error) {
	n, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrNodeNotFound, id)
	}
	if !n.IsText() {
		return nil, fmt.Errorf("%w: %s", constants.ErrNotText, id)
	}
	if l := n.TextLen(); offset < 0 || length < 0 || offset+length > l {
		return nil, fmt.Errorf("%w: [%d,%d) in %s of length %d", constants.ErrOffsetOutOfRange, offset, offset+length, id, l)
	}
	return n, nil
}

func (t *Tree) insertText(o InsertText) error {
	n, err := t.textNode(o.ID, o.Offset, 0)
	if err != nil {
		return err
	}
	runs, i := splitRuns(n.Runs, o.Offset)
	ins := Run{Text: o.Text, Marks: models.Marks{}.Apply(o.Marks)}
	out := make([]Run, 0, len(runs)+1)
	out = append(out, runs[:i]...)
	out = append(out, ins)
	out = append(out, runs[i:]...)
	n.Runs = normalizeRuns(out)
	return nil
}

func (t *Tree) removeText(o RemoveText) error {
	n, err := t.textNode(o.ID, o.Offset, o.Length)
	if err != nil {
		return err
	}
	runs, i := splitRuns(n.Runs, o.Offset)
	runs, j := splitRuns(runs, o.Offset+o.Length)
	out := make([]Run, 0, len(runs))
	out = append(out, runs[:i]...)
	out = append(out, runs[j:]...)
	n.Runs = normalizeRuns(out)
	return nil
}

func (t *Tree) setMark(o SetMark) error {
	n, err := t.textNode(o.ID, o.Offset, o.Length)
	if err != nil {
		return err
	}
	runs, i := splitRuns(n.Runs, o.Offset)
	runs, j := splitRuns(runs, o.Offset+o.Length)
	out := append([]Run(nil), runs...)
	for k := i; k < j; k++ {
		out[k].Marks = out[k].Marks.Apply(o.Marks)
	}
	n.Runs = normalizeRuns(out)
	return nil
}

func indexOfNode(nodes []*Node, id models.ID) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
