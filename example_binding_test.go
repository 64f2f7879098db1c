package blockbind_test

import (
	"fmt"

	"github.com/blockbind/blockbind.go"
	"github.com/blockbind/blockbind.go/pkg/crdt"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/relation"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

// newExampleDoc returns a document holding one paragraph with "hello".
func newExampleDoc() *crdt.Doc {
	doc := crdt.New("example", "document")
	err := doc.Transact(models.Remote("seed"), func(w crdt.Writer) error {
		p := tree.Block("p1", "paragraph", nil, tree.Text("t1", tree.Plain("hello")))
		return w.InsertNode("document", 0, relation.Embed(p))
	})
	if err != nil {
		panic(err)
	}
	return doc
}

func counter() func() models.ID {
	i := 0
	return func() models.ID {
		i++
		return models.ID(fmt.Sprintf("new%d", i))
	}
}

// Splitting a paragraph writes one transaction to the store. The local tree
// is updated from its echo and the caret moves to the new paragraph.
func ExampleBinding_ApplyLocalOp() {
	doc := newExampleDoc()
	b, err := blockbind.New(doc, &blockbind.Config{NewID: counter()})
	if err != nil {
		panic(err)
	}
	defer b.Close()

	if _, err := b.ApplyLocalOp(tree.SplitNode{ID: "t1", Offset: 2}); err != nil {
		panic(err)
	}

	children, _ := b.GetChildren("document")
	for _, id := range children {
		n, _ := b.GetNode(id)
		fmt.Printf("%s: %q\n", id, n.String())
	}
	sel, _ := b.GetSelection()
	fmt.Println("caret:", sel)

	// Output:
	// p1: "he"
	// new1: "llo"
	// caret: new2:0
}

// Remote changes reach subscribers as one epoch per store transaction.
func ExampleBinding_Subscribe() {
	doc := newExampleDoc()
	b, err := blockbind.New(doc, nil)
	if err != nil {
		panic(err)
	}
	defer b.Close()

	b.Subscribe(func(ep blockbind.Epoch) {
		fmt.Printf("epoch %d from %s\n", ep.Seq, ep.Origin)
		for _, op := range ep.Ops {
			fmt.Println("-", op)
		}
	})

	err = doc.Transact(models.Remote("peer"), func(w crdt.Writer) error {
		return w.InsertText("t1", 5, " world", nil)
	})
	if err != nil {
		panic(err)
	}

	// Output:
	// epoch 1 from remote(peer)
	// - insert_text(t1@5, " world")
}

// Two replicas exchange updates and their bindings converge.
func Example_replicas() {
	alice := newExampleDoc()
	bob := crdt.New("bob", "document")
	state, err := alice.EncodeState()
	if err != nil {
		panic(err)
	}
	if err := bob.ApplyUpdate(state, models.Remote("alice")); err != nil {
		panic(err)
	}

	ba, _ := blockbind.New(alice, nil)
	bb, _ := blockbind.New(bob, nil)
	defer ba.Close()
	defer bb.Close()

	alice.OnUpdate(func(u []byte, _ models.Origin) {
		if err := bob.ApplyUpdate(u, models.Remote("alice")); err != nil {
			panic(err)
		}
	})

	if _, err := ba.ApplyLocalOp(tree.InsertText{ID: "t1", Offset: 5, Text: "!"}); err != nil {
		panic(err)
	}

	n, _ := bb.GetNode("t1")
	fmt.Println(n.String())

	// Output:
	// hello!
}
