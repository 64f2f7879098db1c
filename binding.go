package blockbind

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/blockbind/blockbind.go/pkg/applier"
	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/crdt"
	"github.com/blockbind/blockbind.go/pkg/logger"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/paths"
	"github.com/blockbind/blockbind.go/pkg/relation"
	"github.com/blockbind/blockbind.go/pkg/selection"
	"github.com/blockbind/blockbind.go/pkg/translate"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

// Epoch is one batch of changes to the local tree, published to
// subscribers once the whole batch is applied.
type Epoch struct {
	// Seq numbers the epochs of one binding, starting at 1.
	Seq uint64
	// Origin is the origin of the store transaction that caused the epoch.
	// Epochs of Resync and Check carry a remote origin without a session.
	Origin models.Origin
	// Ops are the operations applied to the local tree, in order.
	Ops []tree.Op
	// Selection is the selection after the epoch, nil when none is set.
	Selection *selection.Selection
	// Resynced lists the nodes rebuilt from a store snapshot.
	Resynced []models.ID
}

// Result reports what ApplyLocalOp did.
type Result struct {
	// Applied is false when the operation targets a node the store no longer
	// holds, or when the store already holds its result; nothing was
	// written then.
	Applied bool
	// Seq is the sequence number of the write, 0 when nothing was written.
	Seq uint64
}

// fixup places the selection once the echo of a write has been applied.
type fixup func(t *tree.Tree) (selection.Selection, bool)

type listener struct {
	id uint64
	fn func(Epoch)
}

// Binding keeps a local tree in step with a shared document.
//
// The local tree only changes in reaction to store events, including the
// echo of the binding's own writes. A Binding is safe for concurrent use.
type Binding struct {
	store   crdt.Store
	log     logger.Logger
	session string
	tr      *translate.Translator
	ap      *applier.Applier

	treeMu sync.RWMutex
	local  *tree.Tree
	sel    *selection.Selection
	epoch  uint64

	seq       atomic.Uint64
	pendingMu sync.Mutex
	// pending holds the writes whose echo has not been applied yet.
	pending map[uint64]fixup

	subMu     sync.Mutex
	listeners []listener
	nextSub   uint64

	inboxMu  sync.Mutex
	inbox    []Epoch
	draining bool

	stop   func()
	closed atomic.Bool
}

// New attaches a binding to store. The local tree starts as the store's
// current snapshot; store must not be written to until New returns.
// A nil cfg uses defaults.
func New(store crdt.Store, cfg *Config) (*Binding, error) {
	cfg = cfg.withDefaults()

	root, err := relation.Materialize(store.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to materialize the store snapshot: %w", err)
	}
	local, err := tree.New(root)
	if err != nil {
		return nil, fmt.Errorf("failed to build the local tree: %w", err)
	}

	b := &Binding{
		store:   store,
		log:     cfg.Logger,
		session: cfg.Session,
		tr: translate.New(store,
			translate.WithLogger(cfg.Logger),
			translate.WithMaxRetryRounds(cfg.MaxRetryRounds),
		),
		ap: applier.New(store,
			applier.WithLogger(cfg.Logger),
			applier.WithIDGenerator(cfg.NewID),
		),
		local:   local,
		pending: make(map[uint64]fixup),
	}
	b.stop = store.Observe(b.onBatch)
	b.log.Debug("binding attached", "session", b.session, "root", local.Root(), "nodes", local.Len())
	return b, nil
}

// Session returns the token tagging this binding's writes.
func (b *Binding) Session() string {
	return b.session
}

// Close detaches the binding from the store and drops its subscribers.
func (b *Binding) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.stop()
	b.subMu.Lock()
	b.listeners = nil
	b.subMu.Unlock()
}

// ApplyLocalOp writes op to the store as one transaction. The local tree
// is updated by the echo of that transaction, which with a synchronous
// store has happened by the time ApplyLocalOp returns.
func (b *Binding) ApplyLocalOp(op tree.Op) (Result, error) {
	return b.write(op, nil)
}

// Indent nests the block id under its previous sibling, as the last child.
// A selection inside the block is rebased from its common ancestor to the
// ancestor's new path; any other selection is kept as it was.
func (b *Binding) Indent(id models.ID) (Result, error) {
	return b.move(id, selection.IndentTarget)
}

// Lift moves the block id out of its parent, right after it. The selection
// is carried along as for Indent.
func (b *Binding) Lift(id models.ID) (Result, error) {
	return b.move(id, selection.LiftTarget)
}

func (b *Binding) move(id models.ID, target func(paths.Hierarchy, models.ID) (models.Path, error)) (Result, error) {
	b.treeMu.RLock()
	n, ok := b.local.Node(id)
	if !ok {
		b.treeMu.RUnlock()
		return Result{}, fmt.Errorf("%w: %s", constants.ErrNodeNotFound, id)
	}
	if n.IsText() {
		b.treeMu.RUnlock()
		return Result{}, fmt.Errorf("%w: %s", constants.ErrNotBlock, id)
	}
	to, err := target(b.local, id)
	if err != nil {
		b.treeMu.RUnlock()
		return Result{}, err
	}
	from, _ := paths.PathOf(b.local, id)
	var fix fixup
	if b.sel != nil {
		// identifiers survive the move, so a selection reaching outside the
		// block is restored as it was
		keep := *b.sel
		fix = func(t *tree.Tree) (selection.Selection, bool) {
			return keep, selection.Validate(t, keep) == nil
		}
		if r, err := selection.ToPaths(b.local, keep); err == nil && r.Within(from) {
			common := selection.CommonAncestor(r)
			if moved, err := selection.RebaseCommon(r, to.Join(common[len(from):])); err == nil {
				fix = func(t *tree.Tree) (selection.Selection, bool) {
					s, err := selection.FromPaths(t, moved)
					return s, err == nil && selection.Validate(t, s) == nil
				}
			}
		}
	}
	op := tree.InsertNode{Node: &tree.Node{ID: id, Kind: models.KindBlock, Type: n.Type}, Path: to}
	b.treeMu.RUnlock()

	return b.write(op, fix)
}

func (b *Binding) write(op tree.Op, fix fixup) (Result, error) {
	if b.closed.Load() {
		return Result{}, constants.ErrClosed
	}
	b.treeMu.RLock()
	req, err := b.ap.Resolve(b.local, op)
	b.treeMu.RUnlock()
	if err != nil {
		return Result{}, &OpError{Op: op, Err: err}
	}

	seq := b.seq.Add(1)
	b.expect(seq, fix)
	origin := models.Origin{Kind: models.OriginLocal, Session: b.session, Seq: seq}
	out, err := b.ap.Apply(origin, req, func(p selection.Point) {
		b.hint(seq, p)
	})
	if err != nil {
		b.forget(seq)
		return Result{}, &OpError{Op: op, Err: err}
	}
	if !out.Applied {
		b.forget(seq)
		return Result{}, nil
	}
	return Result{Applied: true, Seq: seq}, nil
}

func (b *Binding) expect(seq uint64, fix fixup) {
	b.pendingMu.Lock()
	b.pending[seq] = fix
	b.pendingMu.Unlock()
}

// hint records where the caret goes once the echo of seq is applied, unless
// the write already set a fixup of its own.
func (b *Binding) hint(seq uint64, p selection.Point) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if fix, ok := b.pending[seq]; !ok || fix != nil {
		return
	}
	b.pending[seq] = func(t *tree.Tree) (selection.Selection, bool) {
		s := selection.Collapsed(p)
		return s, selection.Validate(t, s) == nil
	}
}

func (b *Binding) forget(seq uint64) {
	b.pendingMu.Lock()
	delete(b.pending, seq)
	b.pendingMu.Unlock()
}

// take reports whether seq is an echo still to be applied and returns its
// fixup.
func (b *Binding) take(seq uint64) (fixup, bool) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	fix, ok := b.pending[seq]
	delete(b.pending, seq)
	return fix, ok
}

func (b *Binding) onBatch(batch crdt.Batch) {
	if b.closed.Load() {
		return
	}
	var fix fixup
	if batch.Origin.IsLocalTo(b.session) {
		f, ok := b.take(batch.Origin.Seq)
		if !ok {
			b.log.Debug("ignoring repeated echo", "origin", batch.Origin)
			return
		}
		fix = f
	}

	b.treeMu.Lock()
	rm := selection.NewRemapper(b.sel)
	res := b.tr.Translate(b.local, batch, rm.Observe)
	ep := b.commit(batch.Origin, rm, res, fix)
	b.treeMu.Unlock()

	b.publish(ep)
}

// commit settles the selection after a translation and numbers the epoch.
// treeMu must be held.
func (b *Binding) commit(origin models.Origin, rm *selection.Remapper, res translate.Result, fix fixup) Epoch {
	b.sel = rm.Finish(b.local)
	if fix != nil {
		if s, ok := fix(b.local); ok {
			b.sel = &s
		}
	}
	b.epoch++
	ep := Epoch{
		Seq:       b.epoch,
		Origin:    origin,
		Ops:       res.Ops,
		Selection: cloneSelection(b.sel),
		Resynced:  res.Resynced,
	}
	b.log.Debug("epoch committed", "seq", ep.Seq, "origin", origin, "ops", len(ep.Ops), "resynced", len(ep.Resynced))
	return ep
}

// Resync rebuilds the local subtree of id from the store.
func (b *Binding) Resync(id models.ID) (Epoch, error) {
	return b.repair(func(observe translate.Observer) translate.Result {
		return b.tr.Resync(b.local, id, observe)
	})
}

// Check compares the local tree with the store and rebuilds every node
// that differs. The returned epoch lists what was rebuilt.
func (b *Binding) Check() (Epoch, error) {
	return b.repair(func(observe translate.Observer) translate.Result {
		return b.tr.Check(b.local, observe)
	})
}

func (b *Binding) repair(fn func(translate.Observer) translate.Result) (Epoch, error) {
	if b.closed.Load() {
		return Epoch{}, constants.ErrClosed
	}
	b.treeMu.Lock()
	rm := selection.NewRemapper(b.sel)
	res := fn(rm.Observe)
	if len(res.Ops) == 0 {
		b.treeMu.Unlock()
		return Epoch{Resynced: res.Resynced}, nil
	}
	ep := b.commit(models.Origin{}, rm, res, nil)
	b.treeMu.Unlock()

	b.publish(ep)
	return ep, nil
}

// GetNode returns a copy of the local node id, subtree included.
func (b *Binding) GetNode(id models.ID) (*tree.Node, error) {
	b.treeMu.RLock()
	defer b.treeMu.RUnlock()
	n, ok := b.local.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrNodeNotFound, id)
	}
	return n.Clone(), nil
}

// GetChildren returns the identifiers of the children of id.
func (b *Binding) GetChildren(id models.ID) ([]models.ID, error) {
	b.treeMu.RLock()
	defer b.treeMu.RUnlock()
	if !b.local.Has(id) {
		return nil, fmt.Errorf("%w: %s", constants.ErrNodeNotFound, id)
	}
	return b.local.Children(id), nil
}

// Tree returns a copy of the whole local tree.
func (b *Binding) Tree() *tree.Tree {
	b.treeMu.RLock()
	defer b.treeMu.RUnlock()
	return b.local.Clone()
}

// ExportJSON renders the local tree as JSON.
func (b *Binding) ExportJSON() ([]byte, error) {
	b.treeMu.RLock()
	defer b.treeMu.RUnlock()
	return b.local.MarshalJSON()
}

// GetSelection returns the current selection.
func (b *Binding) GetSelection() (selection.Selection, bool) {
	b.treeMu.RLock()
	defer b.treeMu.RUnlock()
	if b.sel == nil {
		return selection.Selection{}, false
	}
	return *b.sel, true
}

// SetSelection validates and stores a selection. It is kept up to date
// across every later epoch.
func (b *Binding) SetSelection(anchorID models.ID, anchorOffset int, focusID models.ID, focusOffset int) (selection.Selection, error) {
	s := selection.Selection{
		Anchor: selection.Point{ID: anchorID, Offset: anchorOffset},
		Focus:  selection.Point{ID: focusID, Offset: focusOffset},
	}
	b.treeMu.Lock()
	defer b.treeMu.Unlock()
	if err := selection.Validate(b.local, s); err != nil {
		return selection.Selection{}, err
	}
	b.sel = &s
	return s, nil
}

// ClearSelection drops the selection.
func (b *Binding) ClearSelection() {
	b.treeMu.Lock()
	b.sel = nil
	b.treeMu.Unlock()
}

// Subscribe registers fn for every epoch and returns a function that
// removes it. Epochs are delivered in order, one at a time, outside any
// lock of the binding, so fn may call back into it.
func (b *Binding) Subscribe(fn func(Epoch)) func() {
	b.subMu.Lock()
	b.nextSub++
	id := b.nextSub
	b.listeners = append(b.listeners, listener{id: id, fn: fn})
	b.subMu.Unlock()

	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// publish queues ep and delivers the queue unless a delivery is already
// running further up the stack or on another goroutine.
func (b *Binding) publish(ep Epoch) {
	b.inboxMu.Lock()
	b.inbox = append(b.inbox, ep)
	if b.draining {
		b.inboxMu.Unlock()
		return
	}
	b.draining = true
	for len(b.inbox) > 0 {
		next := b.inbox[0]
		b.inbox = b.inbox[1:]
		b.inboxMu.Unlock()

		for _, l := range b.snapshotListeners() {
			l.fn(next)
		}

		b.inboxMu.Lock()
	}
	b.draining = false
	b.inboxMu.Unlock()
}

func (b *Binding) snapshotListeners() []listener {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return append([]listener(nil), b.listeners...)
}

func cloneSelection(s *selection.Selection) *selection.Selection {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
