package blockbind_test

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/blockbind/blockbind.go"
	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/crdt"
	"github.com/blockbind/blockbind.go/pkg/logger"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/relation"
	"github.com/blockbind/blockbind.go/pkg/selection"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

const root = models.ID("document")

var remote = models.Remote("peer")

func para(id models.ID, children ...*tree.Node) *tree.Node {
	return tree.Block(id, "paragraph", nil, children...)
}

func text(id models.ID, s string) *tree.Node {
	return tree.Text(id, tree.Plain(s))
}

// ids mints prefix1, prefix2, ... and is safe for concurrent use.
func ids(prefix string) func() models.ID {
	var mu sync.Mutex
	i := 0
	return func() models.ID {
		mu.Lock()
		defer mu.Unlock()
		i++
		return models.ID(fmt.Sprintf("%s%d", prefix, i))
	}
}

func seed(t *testing.T, replica string, nodes ...*tree.Node) *crdt.Doc {
	t.Helper()
	doc := crdt.New(replica, root)
	require.NoError(t, doc.Transact(remote, func(w crdt.Writer) error {
		for i, n := range nodes {
			if err := w.InsertNode(root, i, relation.Embed(n)); err != nil {
				return err
			}
		}
		return nil
	}))
	return doc
}

func bind(t *testing.T, doc *crdt.Doc, session, prefix string) *blockbind.Binding {
	t.Helper()
	b, err := blockbind.New(doc, &blockbind.Config{Session: session, NewID: ids(prefix)})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

// outbox collects the updates a replica produces from now on.
func outbox(doc *crdt.Doc) *[][]byte {
	var out [][]byte
	doc.OnUpdate(func(u []byte, _ models.Origin) { out = append(out, u) })
	return &out
}

func deliver(t *testing.T, to *crdt.Doc, updates [][]byte) {
	t.Helper()
	for _, u := range updates {
		require.NoError(t, to.ApplyUpdate(u, remote))
	}
}

func assertInSync(t *testing.T, b *blockbind.Binding, doc *crdt.Doc) {
	t.Helper()
	n, err := relation.Materialize(doc.Snapshot())
	require.NoError(t, err)
	want, err := tree.New(n)
	require.NoError(t, err)
	got := b.Tree()
	assert.True(t, want.Equal(got), "local tree diverged from the store\nwant %v\ngot  %v", want.RootNode(), got.RootNode())
}

type BindingTestSuite struct {
	suite.Suite
	doc    *crdt.Doc
	b      *blockbind.Binding
	epochs []blockbind.Epoch
}

func TestBindingTestSuite(t *testing.T) {
	suite.Run(t, new(BindingTestSuite))
}

func (s *BindingTestSuite) SetupTest() {
	s.doc = seed(s.T(), "a", para("p1", text("t1", "hello")))
	s.b = bind(s.T(), s.doc, "s1", "n")
	s.epochs = nil
	s.b.Subscribe(func(ep blockbind.Epoch) {
		s.epochs = append(s.epochs, ep)
	})
}

func (s *BindingTestSuite) node(id models.ID) *tree.Node {
	n, err := s.b.GetNode(id)
	s.Require().NoError(err)
	return n
}

func (s *BindingTestSuite) write(fn func(w crdt.Writer) error) {
	s.Require().NoError(s.doc.Transact(remote, fn))
}

func (s *BindingTestSuite) TestStartsFromSnapshot() {
	children, err := s.b.GetChildren(root)
	s.Require().NoError(err)
	s.Equal([]models.ID{"p1"}, children)
	s.True(para("p1", text("t1", "hello")).Equal(s.node("p1")))

	_, err = s.b.GetNode("missing")
	s.ErrorIs(err, constants.ErrNodeNotFound)
	_, err = s.b.GetChildren("missing")
	s.ErrorIs(err, constants.ErrNodeNotFound)
}

func (s *BindingTestSuite) TestGetNodeReturnsCopy() {
	n := s.node("t1")
	n.Runs[0].Text = "changed"
	s.Equal("hello", s.node("t1").String())
}

func (s *BindingTestSuite) TestSplitPlacesCaretInNewBlock() {
	_, err := s.b.SetSelection("t1", 2, "t1", 2)
	s.Require().NoError(err)

	res, err := s.b.ApplyLocalOp(tree.SplitNode{ID: "t1", Offset: 2})
	s.Require().NoError(err)
	s.Equal(blockbind.Result{Applied: true, Seq: 1}, res)

	children, _ := s.b.GetChildren(root)
	s.Equal([]models.ID{"p1", "n1"}, children)
	s.True(para("p1", text("t1", "he")).Equal(s.node("p1")))
	s.True(para("n1", text("n2", "llo")).Equal(s.node("n1")))

	sel, ok := s.b.GetSelection()
	s.True(ok)
	s.Equal(selection.Collapsed(selection.Point{ID: "n2"}), sel)

	s.Require().Len(s.epochs, 1)
	s.Equal(models.Origin{Kind: models.OriginLocal, Session: "s1", Seq: 1}, s.epochs[0].Origin)
	s.Equal(&sel, s.epochs[0].Selection)
	assertInSync(s.T(), s.b, s.doc)
}

func (s *BindingTestSuite) TestMergeRestoresSplit() {
	_, err := s.b.ApplyLocalOp(tree.SplitNode{ID: "t1", Offset: 2})
	s.Require().NoError(err)

	_, err = s.b.ApplyLocalOp(tree.MergeNode{ID: "n1", WithPreviousID: "p1"})
	s.Require().NoError(err)

	s.True(para("p1", text("t1", "hello")).Equal(s.node("p1")))
	sel, ok := s.b.GetSelection()
	s.True(ok)
	s.Equal(selection.Collapsed(selection.Point{ID: "t1", Offset: 2}), sel)
	assertInSync(s.T(), s.b, s.doc)
}

func (s *BindingTestSuite) TestRemoteTextChange() {
	s.write(func(w crdt.Writer) error {
		return w.InsertText("t1", 5, "X", nil)
	})

	s.Equal("helloX", s.node("t1").String())
	s.Require().Len(s.epochs, 1)
	s.Equal(remote, s.epochs[0].Origin)
	s.Equal([]tree.Op{tree.InsertText{ID: "t1", Offset: 5, Text: "X"}}, s.epochs[0].Ops)
}

func (s *BindingTestSuite) TestSelectionFollowsRemoteText() {
	_, err := s.b.SetSelection("t1", 1, "t1", 4)
	s.Require().NoError(err)

	s.write(func(w crdt.Writer) error {
		if err := w.InsertText("t1", 0, ">> ", nil); err != nil {
			return err
		}
		return w.DeleteText("t1", 5, 3)
	})

	sel, _ := s.b.GetSelection()
	s.Equal(selection.Selection{
		Anchor: selection.Point{ID: "t1", Offset: 4},
		Focus:  selection.Point{ID: "t1", Offset: 5},
	}, sel)
}

func (s *BindingTestSuite) TestSelectionCollapsesWhenNodeIsRemoved() {
	s.write(func(w crdt.Writer) error {
		return w.InsertNode(root, 1, relation.Embed(para("p2", text("t2", "world"))))
	})
	_, err := s.b.SetSelection("t2", 1, "t2", 3)
	s.Require().NoError(err)

	s.write(func(w crdt.Writer) error {
		return w.RemoveNode("p2")
	})

	sel, _ := s.b.GetSelection()
	s.Equal(selection.Collapsed(selection.Point{ID: "t1", Offset: 5}), sel)
}

func (s *BindingTestSuite) TestSetSelectionValidates() {
	_, err := s.b.SetSelection("missing", 0, "t1", 0)
	s.ErrorIs(err, constants.ErrNodeNotFound)
	_, err = s.b.SetSelection("t1", 0, "t1", 6)
	s.ErrorIs(err, constants.ErrOffsetOutOfRange)

	_, ok := s.b.GetSelection()
	s.False(ok)

	sel, err := s.b.SetSelection("t1", 0, "t1", 5)
	s.Require().NoError(err)
	got, ok := s.b.GetSelection()
	s.True(ok)
	s.Equal(sel, got)

	s.b.ClearSelection()
	_, ok = s.b.GetSelection()
	s.False(ok)
}

func (s *BindingTestSuite) TestStaleOperationIsNoOp() {
	s.write(func(w crdt.Writer) error {
		return w.RemoveNode("p1")
	})
	s.epochs = nil

	for _, op := range []tree.Op{
		tree.InsertText{ID: "t1", Text: "x"},
		tree.RemoveNode{ID: "p1"},
		tree.SplitNode{ID: "t1", Offset: 1},
	} {
		res, err := s.b.ApplyLocalOp(op)
		s.Require().NoError(err)
		s.False(res.Applied)
	}
	s.Empty(s.epochs)
}

func (s *BindingTestSuite) TestInvalidOperationIsAnError() {
	_, err := s.b.ApplyLocalOp(tree.InsertNode{Node: para("x"), Path: models.Path{7}})
	s.ErrorIs(err, constants.ErrInvalidPath)

	var opErr *blockbind.OpError
	s.Require().True(errors.As(err, &opErr))
	s.Equal(tree.InsertNode{Node: para("x"), Path: models.Path{7}}, opErr.Op)

	_, err = s.b.ApplyLocalOp(tree.RemoveNode{ID: root})
	s.ErrorIs(err, constants.ErrRootImmutable)
	assertInSync(s.T(), s.b, s.doc)
}

func (s *BindingTestSuite) TestRepeatedEchoIsIgnored() {
	res, err := s.b.ApplyLocalOp(tree.InsertText{ID: "t1", Offset: 5, Text: "!"})
	s.Require().NoError(err)

	s.Require().NoError(s.doc.Transact(models.Origin{Kind: models.OriginLocal, Session: "s1", Seq: res.Seq}, func(w crdt.Writer) error {
		return w.InsertText("t1", 0, "Z", nil)
	}))
	s.Equal("hello!", s.node("t1").String())

	ep, err := s.b.Check()
	s.Require().NoError(err)
	s.Equal([]models.ID{"t1"}, ep.Resynced)
	s.Equal("Zhello!", s.node("t1").String())
	assertInSync(s.T(), s.b, s.doc)
}

func (s *BindingTestSuite) TestOtherSessionIsTreatedAsRemote() {
	s.Require().NoError(s.doc.Transact(models.Origin{Kind: models.OriginLocal, Session: "s2", Seq: 1}, func(w crdt.Writer) error {
		return w.InsertText("t1", 0, "Z", nil)
	}))

	s.Equal("Zhello", s.node("t1").String())
	assertInSync(s.T(), s.b, s.doc)
}

func (s *BindingTestSuite) TestIndentThenLiftRestoresSelection() {
	s.write(func(w crdt.Writer) error {
		if err := w.InsertNode(root, 1, relation.Embed(para("p2", text("t2", "world")))); err != nil {
			return err
		}
		return w.InsertNode(root, 2, relation.Embed(para("p3", text("t3", "!"))))
	})
	before := s.b.Tree()
	want, err := s.b.SetSelection("t2", 1, "t2", 3)
	s.Require().NoError(err)

	_, err = s.b.Indent("p2")
	s.Require().NoError(err)
	children, _ := s.b.GetChildren("p1")
	s.Equal([]models.ID{"t1", "p2"}, children)
	sel, _ := s.b.GetSelection()
	s.Equal(want, sel)

	_, err = s.b.Lift("p2")
	s.Require().NoError(err)
	children, _ = s.b.GetChildren(root)
	s.Equal([]models.ID{"p1", "p2", "p3"}, children)
	sel, _ = s.b.GetSelection()
	s.Equal(want, sel)
	s.True(before.Equal(s.b.Tree()))
	assertInSync(s.T(), s.b, s.doc)
}

func (s *BindingTestSuite) TestMoveWithinParent() {
	s.write(func(w crdt.Writer) error {
		return w.InsertNode(root, 1, relation.Embed(para("p2", text("t2", "world"))))
	})

	res, err := s.b.ApplyLocalOp(tree.InsertNode{Node: &tree.Node{ID: "p2", Kind: models.KindBlock}, Path: models.Path{0}})
	s.Require().NoError(err)
	s.True(res.Applied)
	children, _ := s.b.GetChildren(root)
	s.Equal([]models.ID{"p2", "p1"}, children)
	s.Equal("world", s.node("t2").String())
	assertInSync(s.T(), s.b, s.doc)

	res, err = s.b.ApplyLocalOp(tree.InsertNode{Node: &tree.Node{ID: "p2", Kind: models.KindBlock}, Path: models.Path{1}})
	s.Require().NoError(err)
	s.True(res.Applied)
	children, _ = s.b.GetChildren(root)
	s.Equal([]models.ID{"p1", "p2"}, children)
	assertInSync(s.T(), s.b, s.doc)

	ep, err := s.b.Check()
	s.Require().NoError(err)
	s.Empty(ep.Resynced)
}

func (s *BindingTestSuite) TestMoveToSamePlaceIsNotApplied() {
	s.write(func(w crdt.Writer) error {
		return w.InsertNode(root, 1, relation.Embed(para("p2", text("t2", "world"))))
	})
	s.epochs = nil

	for _, op := range []tree.Op{
		tree.InsertNode{Node: &tree.Node{ID: "p2", Kind: models.KindBlock}, Path: models.Path{1}},
		tree.RemoveText{ID: "t1", Offset: 2},
		tree.SetNodeData{ID: "p1", Type: "paragraph"},
	} {
		res, err := s.b.ApplyLocalOp(op)
		s.Require().NoError(err)
		s.False(res.Applied, "%v", op)
		s.Zero(res.Seq)
	}
	s.Empty(s.epochs)

	// a later write is still recognised as this session's echo
	res, err := s.b.ApplyLocalOp(tree.InsertText{ID: "t1", Offset: 5, Text: "!"})
	s.Require().NoError(err)
	s.Require().Len(s.epochs, 1)
	s.Equal(res.Seq, s.epochs[0].Origin.Seq)
	s.Equal("hello!", s.node("t1").String())
}

func (s *BindingTestSuite) TestIndentKeepsSelectionReachingOutside() {
	s.write(func(w crdt.Writer) error {
		if err := w.InsertNode(root, 1, relation.Embed(para("p2", text("t2", "world")))); err != nil {
			return err
		}
		return w.InsertNode(root, 2, relation.Embed(para("p3", text("t3", "!"))))
	})
	want, err := s.b.SetSelection("t1", 2, "t2", 3)
	s.Require().NoError(err)

	_, err = s.b.Indent("p2")
	s.Require().NoError(err)
	sel, ok := s.b.GetSelection()
	s.Require().True(ok)
	s.Equal(want, sel)

	want, err = s.b.SetSelection("t2", 1, "t3", 1)
	s.Require().NoError(err)
	_, err = s.b.Lift("p2")
	s.Require().NoError(err)
	sel, _ = s.b.GetSelection()
	s.Equal(want, sel)
	children, _ := s.b.GetChildren(root)
	s.Equal([]models.ID{"p1", "p2", "p3"}, children)
	assertInSync(s.T(), s.b, s.doc)
}

func (s *BindingTestSuite) TestIndentAndLiftErrors() {
	_, err := s.b.Indent("p1")
	s.ErrorIs(err, constants.ErrCannotIndent)
	_, err = s.b.Lift("p1")
	s.ErrorIs(err, constants.ErrCannotLift)
	_, err = s.b.Indent("t1")
	s.ErrorIs(err, constants.ErrNotBlock)
	_, err = s.b.Lift("missing")
	s.ErrorIs(err, constants.ErrNodeNotFound)
}

func (s *BindingTestSuite) TestResyncPublishesEpoch() {
	ep, err := s.b.Resync("t1")
	s.Require().NoError(err)
	s.Equal([]models.ID{"t1"}, ep.Resynced)
	s.Require().Len(ep.Ops, 2)
	s.Equal(tree.RemoveNode{ID: "t1"}, ep.Ops[0])
	ins, ok := ep.Ops[1].(tree.InsertNode)
	s.Require().True(ok)
	s.Equal(models.Path{0, 0}, ins.Path)
	s.True(text("t1", "hello").Equal(ins.Node))
	s.Require().Len(s.epochs, 1)
	s.Equal(ep.Seq, s.epochs[0].Seq)

	ep, err = s.b.Check()
	s.Require().NoError(err)
	s.Empty(ep.Ops)
	s.Len(s.epochs, 1)
}

func (s *BindingTestSuite) TestEpochsAreNumbered() {
	for i := 0; i < 3; i++ {
		_, err := s.b.ApplyLocalOp(tree.InsertText{ID: "t1", Offset: 0, Text: "x"})
		s.Require().NoError(err)
	}
	s.Require().Len(s.epochs, 3)
	for i, ep := range s.epochs {
		s.Equal(uint64(i+1), ep.Seq)
		s.Equal(uint64(i+1), ep.Origin.Seq)
	}
}

func (s *BindingTestSuite) TestListenerMayWriteBack() {
	var once sync.Once
	s.b.Subscribe(func(ep blockbind.Epoch) {
		once.Do(func() {
			_, err := s.b.ApplyLocalOp(tree.InsertText{ID: "t1", Offset: 0, Text: ">"})
			s.NoError(err)
		})
	})

	_, err := s.b.ApplyLocalOp(tree.InsertText{ID: "t1", Offset: 5, Text: "<"})
	s.Require().NoError(err)

	s.Equal(">hello<", s.node("t1").String())
	s.Len(s.epochs, 2)
	assertInSync(s.T(), s.b, s.doc)
}

func (s *BindingTestSuite) TestUnsubscribe() {
	var got int
	unsubscribe := s.b.Subscribe(func(blockbind.Epoch) { got++ })

	_, err := s.b.ApplyLocalOp(tree.InsertText{ID: "t1", Text: "a"})
	s.Require().NoError(err)
	unsubscribe()
	_, err = s.b.ApplyLocalOp(tree.InsertText{ID: "t1", Text: "b"})
	s.Require().NoError(err)

	s.Equal(1, got)
	s.Len(s.epochs, 2)
}

func (s *BindingTestSuite) TestClose() {
	s.b.Close()
	s.b.Close()

	_, err := s.b.ApplyLocalOp(tree.InsertText{ID: "t1", Text: "a"})
	s.ErrorIs(err, constants.ErrClosed)
	_, err = s.b.Check()
	s.ErrorIs(err, constants.ErrClosed)

	s.write(func(w crdt.Writer) error {
		return w.InsertText("t1", 0, "Z", nil)
	})
	s.Equal("hello", s.node("t1").String())
	s.Empty(s.epochs)
}

func (s *BindingTestSuite) TestExportJSON() {
	b, err := s.b.ExportJSON()
	s.Require().NoError(err)
	s.JSONEq(`{
		"id": "document", "kind": "block", "type": "document",
		"children": [{
			"id": "p1", "kind": "block", "type": "paragraph",
			"children": [{"id": "t1", "kind": "text", "type": "text", "runs": [{"text": "hello"}]}]
		}]
	}`, string(b))
}

func (s *BindingTestSuite) TestConcurrentWriters() {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := s.b.ApplyLocalOp(tree.InsertText{ID: "t1", Offset: 0, Text: "l"})
				s.NoError(err)
				_ = s.b.Tree()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.NoError(s.doc.Transact(remote, func(w crdt.Writer) error {
					return w.InsertText("t1", w.TextLen("t1"), "r", nil)
				}))
			}
		}()
	}
	wg.Wait()

	s.Equal(5+8*20*2, s.node("t1").TextLen())
	assertInSync(s.T(), s.b, s.doc)
}

func TestLogsThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	logData, err := logger.New().FromBuffer(&buf).WithLevel("debug").Make()
	require.NoError(t, err)

	doc := seed(t, "a", para("p1", text("t1", "hello")))
	b, err := blockbind.New(doc, &blockbind.Config{Logger: logData.Adapter(), Session: "s1"})
	require.NoError(t, err)
	defer b.Close()

	res, err := b.ApplyLocalOp(tree.RemoveNode{ID: "gone"})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Contains(t, buf.String(), "local operation targets a node the store no longer holds")

	_, err = b.Resync("t1")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "resyncing subtree from the store")
}

// B1 gains a first child on two replicas at once.
func TestConcurrentFirstChildInserts(t *testing.T) {
	alice := seed(t, "alice", para("b1"))
	bob := crdt.New("bob", root)
	state, err := alice.EncodeState()
	require.NoError(t, err)
	require.NoError(t, bob.ApplyUpdate(state, remote))

	ba := bind(t, alice, "sa", "a")
	bb := bind(t, bob, "sb", "b")
	aliceOut, bobOut := outbox(alice), outbox(bob)

	_, err = ba.ApplyLocalOp(tree.InsertNode{Node: para("b3"), Path: models.Path{0, 0}})
	require.NoError(t, err)
	_, err = bb.ApplyLocalOp(tree.InsertNode{Node: para("b2"), Path: models.Path{0, 0}})
	require.NoError(t, err)

	deliver(t, alice, *bobOut)
	deliver(t, bob, *aliceOut)

	got, err := ba.GetChildren("b1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ID{"b2", "b3"}, got)
	other, err := bb.GetChildren("b1")
	require.NoError(t, err)
	assert.Equal(t, got, other)
	assertInSync(t, ba, alice)
	assertInSync(t, bb, bob)
}

func TestConcurrentReorderAndMoveConverge(t *testing.T) {
	alice := seed(t, "alice",
		para("p1", text("t1", "one")),
		para("p2", text("t2", "two")),
		para("p3", text("t3", "three")),
	)
	bob := crdt.New("bob", root)
	state, err := alice.EncodeState()
	require.NoError(t, err)
	require.NoError(t, bob.ApplyUpdate(state, remote))

	ba := bind(t, alice, "sa", "a")
	bb := bind(t, bob, "sb", "b")
	aliceOut, bobOut := outbox(alice), outbox(bob)

	// alice reorders p3 to the front, bob nests p2 under p3 and moves p1 last
	_, err = ba.ApplyLocalOp(tree.InsertNode{Node: &tree.Node{ID: "p3", Kind: models.KindBlock}, Path: models.Path{0}})
	require.NoError(t, err)
	_, err = bb.ApplyLocalOp(tree.InsertNode{Node: &tree.Node{ID: "p2", Kind: models.KindBlock}, Path: models.Path{1, 1}})
	require.NoError(t, err)
	_, err = bb.ApplyLocalOp(tree.InsertNode{Node: &tree.Node{ID: "p1", Kind: models.KindBlock}, Path: models.Path{1}})
	require.NoError(t, err)

	deliver(t, alice, *bobOut)
	deliver(t, bob, *aliceOut)

	assertInSync(t, ba, alice)
	assertInSync(t, bb, bob)
	assert.True(t, ba.Tree().Equal(bb.Tree()))
	children, err := ba.GetChildren(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ID{"p1", "p3"}, children)
	nested, err := ba.GetChildren("p3")
	require.NoError(t, err)
	assert.Equal(t, []models.ID{"t3", "p2"}, nested)
	n, err := bb.GetNode("t2")
	require.NoError(t, err)
	assert.Equal(t, "two", n.String())
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv(blockbind.EnvSession, "editor-7")
	t.Setenv(blockbind.EnvLogLevel, "debug")

	cfg := blockbind.NewConfig()
	assert.Equal(t, "editor-7", cfg.Session)
	assert.Equal(t, constants.DefaultMaxRetryRounds, cfg.MaxRetryRounds)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.NewID)
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv(blockbind.EnvSession, "")

	a, b := blockbind.NewConfig(), blockbind.NewConfig()
	assert.Len(t, a.Session, 16)
	assert.NotEqual(t, a.Session, b.Session)

	doc := seed(t, "a")
	binding, err := blockbind.New(doc, nil)
	require.NoError(t, err)
	defer binding.Close()
	assert.NotEmpty(t, binding.Session())
}
