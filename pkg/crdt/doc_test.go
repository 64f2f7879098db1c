package crdt_test

import (
	"errors"
	"testing"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/crdt"
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const root = models.ID("document")

var local = models.Origin{Kind: models.OriginLocal, Session: "s1", Seq: 1}

func text(id, s string) delta.Embed {
	e := delta.Embed{Attrs: map[string]any{"textId": id}}
	if s != "" {
		e.Delta = []delta.Entry{{Text: s}}
	}
	return e
}

func block(id string, children ...delta.Embed) delta.Embed {
	e := delta.Embed{Attrs: map[string]any{"blockId": id, "blockType": "paragraph"}}
	for i := range children {
		e.Delta = append(e.Delta, delta.Entry{Embed: &children[i]})
	}
	return e
}

func insert(t *testing.T, d *crdt.Doc, parent models.ID, index int, e delta.Embed) {
	t.Helper()
	require.NoError(t, d.Transact(local, func(w crdt.Writer) error {
		return w.InsertNode(parent, index, e)
	}))
}

func record(d *crdt.Doc) *[]crdt.Batch {
	var batches []crdt.Batch
	d.Observe(func(b crdt.Batch) { batches = append(batches, b) })
	return &batches
}

func TestInsertNodeEmitsSnapshot(t *testing.T) {
	d := crdt.New("a", root)
	batches := record(d)

	insert(t, d, root, 0, block("p1", text("t1", "hello")))

	require.Len(t, *batches, 1)
	b := (*batches)[0]
	assert.Equal(t, local, b.Origin)
	require.Len(t, b.Events, 1)
	cc, ok := b.Events[0].(crdt.ChildrenChange)
	require.True(t, ok)
	assert.Equal(t, root, cc.ID)
	require.Len(t, cc.Delta, 1)
	ins := cc.Delta[0].(delta.ChildInsert)
	require.Len(t, ins.Nodes, 1)
	assert.Equal(t, "p1", ins.Nodes[0].Attrs["blockId"])
	assert.Equal(t, "hello", ins.Nodes[0].Delta[0].Embed.PlainText())

	assert.True(t, d.Exists("t1"))
	assert.Equal(t, []models.ID{"p1"}, d.Children(root))
	assert.Equal(t, []models.ID{"t1"}, d.Children("p1"))
	parent, ok := d.Parent("t1")
	require.True(t, ok)
	assert.Equal(t, models.ID("p1"), parent)
}

func TestTextChangeDelta(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1", text("t1", "hello")))
	batches := record(d)

	require.NoError(t, d.Transact(local, func(w crdt.Writer) error {
		return w.InsertText("t1", 5, "X", nil)
	}))

	require.Len(t, *batches, 1)
	assert.Equal(t, []crdt.Event{crdt.TextChange{
		ID:    "t1",
		Delta: delta.Text{delta.Retain{N: 5}, delta.Insert{Text: "X"}},
	}}, (*batches)[0].Events)
	assert.Equal(t, []delta.Entry{{Text: "helloX"}}, d.Content("t1"))
}

func TestDeleteAndFormat(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1", text("t1", "hello")))
	batches := record(d)

	require.NoError(t, d.Transact(local, func(w crdt.Writer) error {
		if err := w.DeleteText("t1", 0, 1); err != nil {
			return err
		}
		return w.Format("t1", 1, 2, models.Marks{"bold": true})
	}))

	require.Len(t, *batches, 1)
	assert.Equal(t, []crdt.Event{crdt.TextChange{
		ID: "t1",
		Delta: delta.Text{
			delta.Delete{N: 1},
			delta.Retain{N: 1},
			delta.Retain{N: 2, Marks: models.Marks{"bold": true}},
		},
	}}, (*batches)[0].Events)
	assert.Equal(t, []delta.Entry{
		{Text: "e"},
		{Text: "ll", Marks: models.Marks{"bold": true}},
		{Text: "o"},
	}, d.Content("t1"))
}

func TestAttributeChange(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1"))
	batches := record(d)

	require.NoError(t, d.Transact(local, func(w crdt.Writer) error {
		return w.SetAttr("p1", "data", map[string]any{"level": 2})
	}))

	require.Len(t, *batches, 1)
	assert.Equal(t, []crdt.Event{crdt.AttributeChange{
		ID:  "p1",
		Key: "data",
		New: map[string]any{"level": int64(2)},
	}}, (*batches)[0].Events)
}

func TestTransactRollsBack(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1", text("t1", "hello")))
	before := d.Snapshot()
	batches := record(d)
	var updates int
	d.OnUpdate(func([]byte, models.Origin) { updates++ })

	boom := errors.New("boom")
	err := d.Transact(local, func(w crdt.Writer) error {
		require.NoError(t, w.InsertText("t1", 0, "abc", nil))
		require.NoError(t, w.InsertNode(root, 1, block("p2", text("t2", "x"))))
		require.NoError(t, w.RemoveNode("p1"))
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, d.Snapshot())
	assert.Empty(t, *batches)
	assert.Zero(t, updates)
	assert.False(t, d.Exists("p2"))
}

func TestWriterErrors(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1", text("t1", "hi")))

	cases := []struct {
		name string
		fn   func(w crdt.Writer) error
		want error
	}{
		{"remove root", func(w crdt.Writer) error { return w.RemoveNode(root) }, constants.ErrRootImmutable},
		{"remove missing", func(w crdt.Writer) error { return w.RemoveNode("nope") }, constants.ErrNodeNotFound},
		{"text on block", func(w crdt.Writer) error { return w.InsertText("p1", 0, "x", nil) }, constants.ErrNotText},
		{"insert under text", func(w crdt.Writer) error { return w.InsertNode("t1", 0, block("p2")) }, constants.ErrNotBlock},
		{"offset", func(w crdt.Writer) error { return w.DeleteText("t1", 1, 5) }, constants.ErrOffsetOutOfRange},
		{"index", func(w crdt.Writer) error { return w.InsertNode(root, 3, block("p2")) }, constants.ErrOffsetOutOfRange},
		{"cycle", func(w crdt.Writer) error { return w.InsertNode("p1", 0, block("p1")) }, constants.ErrInvalidPath},
		{"anonymous", func(w crdt.Writer) error { return w.InsertNode(root, 0, delta.Embed{}) }, constants.ErrMalformedDelta},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := d.Transact(local, tc.fn)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.False(t, d.Exists("p2"))
}

func TestMoveKeepsContent(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1", text("t1", "one")))
	insert(t, d, root, 1, block("p2", text("t2", "two")))
	require.NoError(t, d.Transact(local, func(w crdt.Writer) error {
		return w.Format("t2", 0, 3, models.Marks{"bold": true})
	}))
	batches := record(d)

	// the snapshot content is ignored for an existing node
	insert(t, d, "p1", 1, block("p2"))

	assert.Equal(t, []models.ID{"p1"}, d.Children(root))
	assert.Equal(t, []models.ID{"t1", "p2"}, d.Children("p1"))
	assert.Equal(t, []delta.Entry{{Text: "two", Marks: models.Marks{"bold": true}}}, d.Content("t2"))

	require.Len(t, *batches, 1)
	events := (*batches)[0].Events
	require.Len(t, events, 2)
	assert.Equal(t, crdt.ChildrenChange{
		ID:    root,
		Delta: delta.Children{delta.ChildRetain{N: 1}, delta.ChildDelete{N: 1, IDs: []models.ID{"p2"}}},
	}, events[0])
	moved := events[1].(crdt.ChildrenChange)
	assert.Equal(t, models.ID("p1"), moved.ID)
	require.Len(t, moved.Delta, 2)
	assert.Equal(t, delta.ChildRetain{N: 1}, moved.Delta[0])
	ins := moved.Delta[1].(delta.ChildInsert)
	assert.Equal(t, "two", ins.Nodes[0].Delta[0].Embed.PlainText())
}

func TestRemoveThenReinsert(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1", text("t1", "keep")))
	require.NoError(t, d.Transact(local, func(w crdt.Writer) error { return w.RemoveNode("p1") }))
	assert.False(t, d.Exists("p1"))
	assert.False(t, d.Exists("t1"))

	insert(t, d, root, 0, block("p1"))
	assert.True(t, d.Exists("t1"))
	assert.Equal(t, []delta.Entry{{Text: "keep"}}, d.Content("t1"))
}

func TestAnonymousTextIsKept(t *testing.T) {
	d := crdt.New("a", root)
	e := block("p1")
	e.Delta = []delta.Entry{{Text: "loose"}}
	insert(t, d, root, 0, e)

	loose := delta.LooseID("p1")
	assert.Equal(t, []models.ID{loose}, d.Children("p1"))
	assert.Equal(t, []delta.Entry{{Text: "loose"}}, d.Content(loose))
}

func TestReorderWithinParent(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1", text("t1", "one")))
	insert(t, d, root, 1, block("p2", text("t2", "two")))
	batches := record(d)

	insert(t, d, root, 0, block("p2"))

	assert.Equal(t, []models.ID{"p2", "p1"}, d.Children(root))
	assert.Equal(t, []delta.Entry{{Text: "two"}}, d.Content("t2"))
	require.Len(t, *batches, 1)
	events := (*batches)[0].Events
	require.Len(t, events, 1)
	cc := events[0].(crdt.ChildrenChange)
	assert.Equal(t, root, cc.ID)

	var inserted, deleted []models.ID
	for _, op := range cc.Delta {
		switch o := op.(type) {
		case delta.ChildInsert:
			for _, n := range o.Nodes {
				id, _ := n.BlockID()
				inserted = append(inserted, id)
			}
		case delta.ChildDelete:
			deleted = append(deleted, o.IDs...)
		}
	}
	assert.Len(t, inserted, 1)
	assert.Equal(t, inserted, deleted)
}

func TestUnchangedTransactionCommitsNothing(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1", text("t1", "hello")))
	require.NoError(t, d.Transact(local, func(w crdt.Writer) error {
		return w.Format("t1", 0, 2, models.Marks{"bold": true})
	}))
	batches := record(d)
	var updates int
	d.OnUpdate(func([]byte, models.Origin) { updates++ })

	cases := []struct {
		name string
		fn   func(w crdt.Writer) error
	}{
		{"empty delete", func(w crdt.Writer) error { return w.DeleteText("t1", 2, 0) }},
		{"same attribute", func(w crdt.Writer) error { return w.SetAttr("p1", "blockType", "paragraph") }},
		{"same marks", func(w crdt.Writer) error { return w.Format("t1", 0, 2, models.Marks{"bold": true}) }},
		{"same place", func(w crdt.Writer) error { return w.InsertNode(root, 0, block("p1")) }},
		{"insert then delete", func(w crdt.Writer) error {
			if err := w.InsertText("t1", 1, "xy", nil); err != nil {
				return err
			}
			return w.DeleteText("t1", 1, 2)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var changed bool
			require.NoError(t, d.Transact(local, func(w crdt.Writer) error {
				if err := tc.fn(w); err != nil {
					return err
				}
				changed = w.Changed()
				return nil
			}))
			assert.False(t, changed)
		})
	}
	assert.Empty(t, *batches)
	assert.Zero(t, updates)
}

func TestChangedSeesPendingWrites(t *testing.T) {
	d := crdt.New("a", root)
	insert(t, d, root, 0, block("p1", text("t1", "hello")))

	require.NoError(t, d.Transact(local, func(w crdt.Writer) error {
		assert.False(t, w.Changed())
		require.NoError(t, w.InsertText("t1", 5, "!", nil))
		assert.True(t, w.Changed())
		assert.Equal(t, 6, w.TextLen("t1"))
		return nil
	}))
	assert.Equal(t, []delta.Entry{{Text: "hello!"}}, d.Content("t1"))
}
