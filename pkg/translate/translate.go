// Package translate turns CRDT mutation events into local tree operations
// and applies them.
//
// Operations are applied one at a time, each against the tree as the
// previous one left it: paths are resolved, one operation is applied, and
// the next path is resolved again. Events of a batch are translated in the
// order the store recorded them. An event that cites a node the local tree
// does not hold yet is deferred and retried after every event that
// succeeds; if it is still unresolved when the batch ends, the nearest
// ancestor the local tree holds is rebuilt from the store instead.
package translate

import (
	"errors"
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/crdt"
	"github.com/blockbind/blockbind.go/pkg/logger"
	"github.com/blockbind/blockbind.go/pkg/models"
	"github.com/blockbind/blockbind.go/pkg/tree"
)

// Observer is called with every operation right before it is applied.
type Observer func(t *tree.Tree, op tree.Op)

// Result describes what a translation did to the local tree.
type Result struct {
	// Ops are the applied operations, in order, resync operations included.
	Ops []tree.Op
	// Resynced lists the nodes rebuilt from a store snapshot.
	Resynced []models.ID
	// Deferred counts the events that had to wait for a later event.
	Deferred int
}

type Translator struct {
	store     crdt.Reader
	log       logger.Logger
	maxRounds int
}

type Option func(*Translator)

func WithLogger(l logger.Logger) Option {
	return func(tr *Translator) {
		tr.log = l
	}
}

// WithMaxRetryRounds bounds how often the deferred events of a batch are
// retried after a successful event.
func WithMaxRetryRounds(n int) Option {
	return func(tr *Translator) {
		if n > 0 {
			tr.maxRounds = n
		}
	}
}

// New returns a translator that reads snapshots for resyncs from store.
func New(store crdt.Reader, opts ...Option) *Translator {
	tr := &Translator{
		store:     store,
		log:       logger.Nop{},
		maxRounds: constants.DefaultMaxRetryRounds,
	}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// run is the state of one translation pass over a tree.
type run struct {
	tr      *Translator
	t       *tree.Tree
	observe Observer
	res     Result
}

func (tr *Translator) newRun(t *tree.Tree, observe Observer) *run {
	if observe == nil {
		observe = func(*tree.Tree, tree.Op) {}
	}
	return &run{tr: tr, t: t, observe: observe}
}

// Translate applies the events of b to t.
func (tr *Translator) Translate(t *tree.Tree, b crdt.Batch, observe Observer) Result {
	r := tr.newRun(t, observe)
	var deferred []crdt.Event
	for _, ev := range b.Events {
		if err := r.event(ev); err != nil {
			if r.fail(ev, err) {
				deferred = append(deferred, ev)
				r.res.Deferred++
			}
			continue
		}
		deferred = r.retry(deferred)
	}
	for _, ev := range deferred {
		tr.log.Warn("reference still unresolved at batch end, resyncing", "target", ev.Target(), "origin", b.Origin)
		r.resync(ev.Target())
	}
	return r.res
}

// Resync rebuilds id from the store snapshot. When the local tree does not
// hold id, its nearest ancestor that it does hold is rebuilt.
func (tr *Translator) Resync(t *tree.Tree, id models.ID, observe Observer) Result {
	r := tr.newRun(t, observe)
	r.resync(id)
	return r.res
}

func (r *run) apply(op tree.Op) error {
	r.observe(r.t, op)
	if err := r.t.Apply(op); err != nil {
		return err
	}
	r.res.Ops = append(r.res.Ops, op)
	return nil
}

func (r *run) event(ev crdt.Event) error {
	switch e := ev.(type) {
	case crdt.AttributeChange:
		return r.attribute(e)
	case crdt.TextChange:
		return r.text(e)
	case crdt.ChildrenChange:
		return r.children(e)
	default:
		return fmt.Errorf("%w: %T", constants.ErrUnknownEvent, ev)
	}
}

// fail handles a failed event and reports whether it should be deferred.
func (r *run) fail(ev crdt.Event, err error) bool {
	var unresolved *UnresolvedError
	var bad *MalformedDeltaError
	switch {
	case errors.As(err, &unresolved):
		r.tr.log.Debug("deferring event", "target", ev.Target(), "missing", unresolved.ID)
		return true
	case errors.As(err, &bad):
		r.tr.log.Warn("malformed delta, resyncing", "target", bad.ID, "error", err)
		r.resync(bad.ID)
	case errors.Is(err, constants.ErrUnknownEvent):
		r.tr.log.Error("dropping unknown event", "target", ev.Target(), "error", err)
	default:
		r.tr.log.Error("failed to translate event, resyncing", "target", ev.Target(), "error", err)
		r.resync(ev.Target())
	}
	return false
}

// retry replays deferred events until none of them makes progress.
func (r *run) retry(deferred []crdt.Event) []crdt.Event {
	for round := 0; round < r.tr.maxRounds && len(deferred) > 0; round++ {
		var still []crdt.Event
		progressed := false
		for _, ev := range deferred {
			err := r.event(ev)
			if err != nil && r.fail(ev, err) {
				still = append(still, ev)
				continue
			}
			progressed = true
		}
		deferred = still
		if !progressed {
			break
		}
	}
	return deferred
}
