package tree

import (
	"github.com/goccy/go-json"

	"github.com/blockbind/blockbind.go/pkg/models"
)

type jsonNode struct {
	ID       models.ID      `json:"id"`
	Kind     string         `json:"kind"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data,omitempty"`
	Children []*Node        `json:"children,omitempty"`
	Runs     []Run          `json:"runs,omitempty"`
}

// MarshalJSON renders the subtree in the shape editors consume.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonNode{
		ID:       n.ID,
		Kind:     n.Kind.String(),
		Type:     n.Type,
		Data:     n.Data,
		Children: n.Children,
		Runs:     normalizeRuns(n.Runs),
	})
}

// UnmarshalJSON reads the shape produced by MarshalJSON.
func (n *Node) UnmarshalJSON(b []byte) error {
	var j jsonNode
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*n = Node{ID: j.ID, Type: j.Type, Data: j.Data, Children: j.Children, Runs: j.Runs}
	n.Kind = models.KindBlock
	if j.Kind == models.KindText.String() {
		n.Kind = models.KindText
	}
	return nil
}

// MarshalJSON renders the whole tree.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.root)
}
