package crdt

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/automerge/automerge-go"
	"github.com/gofrs/uuid"

	"github.com/blockbind/blockbind.go/internal/codec"
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/logger"
	"github.com/blockbind/blockbind.go/pkg/models"
)

type observer struct {
	id int
	fn func(Batch)
}

type updateObserver struct {
	id int
	fn func([]byte, models.Origin)
}

type pending struct {
	batch  Batch
	update []byte
	local  bool
}

// Doc is a block tree kept in an automerge document. Every node is a map
// in the automerge root; its parent and sibling order form one
// last-writer-wins placement register, so concurrent moves of the same
// node converge on one parent. Text is a list of per-character maps whose
// mark keys are last-writer-wins registers of their own.
//
// Events are computed by comparing the decoded document before and after
// each local transaction or remote update, so local and remote changes are
// described the same way.
//
// Doc is safe for concurrent use. Observers are called outside the lock, in
// commit order, and may read the document.
type Doc struct {
	mu      sync.RWMutex
	replica string
	root    models.ID
	am      *automerge.Doc
	view    *view
	codec   *codec.CBOR
	log     logger.Logger

	nextObserver    int
	observers       []observer
	updateObservers []updateObserver
	pending         []pending
	dispatching     bool
}

type Option func(*Doc)

// WithLogger sets the logger used to report undecodable document content.
func WithLogger(l logger.Logger) Option {
	return func(d *Doc) {
		d.log = l
	}
}

// New creates an empty document. Every replica of one document must use the
// same root identifier and a distinct replica name; the automerge actor is
// derived from the name.
func New(replica string, root models.ID, opts ...Option) *Doc {
	d := &Doc{
		replica: replica,
		root:    root,
		am:      automerge.New(),
		view:    newView(root),
		codec:   codec.NewCBOR(),
		log:     logger.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	actor := uuid.NewV5(uuid.NamespaceOID, replica)
	if err := d.am.SetActorID(hex.EncodeToString(actor.Bytes())); err != nil {
		d.log.Error("failed to set the actor, keeping a random one", "replica", replica, "error", err)
	}
	return d
}

func (d *Doc) Replica() string {
	return d.replica
}

func (d *Doc) Root() models.ID {
	return d.root
}

func (d *Doc) Exists(id models.ID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view.reachable(id)
}

func (d *Doc) Kind(id models.ID) (models.Kind, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view.kindOf(id)
}

func (d *Doc) Parent(id models.ID) (models.ID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view.parentOf(id)
}

func (d *Doc) Children(id models.ID) []models.ID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view.children(id)
}

func (d *Doc) Attrs(id models.ID) map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view.attrsOf(id)
}

func (d *Doc) Content(id models.ID) []delta.Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view.content(id)
}

func (d *Doc) TextLen(id models.ID) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.view.charsOf(id))
}

func (d *Doc) SnapshotOf(id models.ID) (delta.Embed, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.view.reachable(id) {
		return delta.Embed{}, false
	}
	return d.view.snapshot(id), true
}

// Snapshot returns the whole document as the root's nested delta.
func (d *Doc) Snapshot() delta.Embed {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view.snapshot(d.root)
}

// Observe registers fn for every committed batch, local or remote.
func (d *Doc) Observe(fn func(Batch)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextObserver++
	id := d.nextObserver
	d.observers = append(d.observers, observer{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

// OnUpdate registers fn for the encoded update of every local transaction.
// Updates applied through ApplyUpdate are not reported again.
func (d *Doc) OnUpdate(fn func(update []byte, origin models.Origin)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextObserver++
	id := d.nextObserver
	d.updateObservers = append(d.updateObservers, updateObserver{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, o := range d.updateObservers {
			if o.id == id {
				d.updateObservers = append(d.updateObservers[:i:i], d.updateObservers[i+1:]...)
				return
			}
		}
	}
}

// flush delivers queued batches in commit order. A flush started while
// another one is running leaves the work to it.
func (d *Doc) flush() {
	d.mu.Lock()
	if d.dispatching {
		d.mu.Unlock()
		return
	}
	d.dispatching = true
	for len(d.pending) > 0 {
		p := d.pending[0]
		d.pending = d.pending[1:]
		observers := append([]observer(nil), d.observers...)
		updaters := append([]updateObserver(nil), d.updateObservers...)
		d.mu.Unlock()

		if p.update != nil && p.local {
			for _, u := range updaters {
				u.fn(p.update, p.batch.Origin)
			}
		}
		if len(p.batch.Events) > 0 {
			for _, o := range observers {
				o.fn(p.batch)
			}
		}

		d.mu.Lock()
	}
	d.dispatching = false
	d.mu.Unlock()
}

// normalize round-trips v through the value codec so every replica holds
// values of identical dynamic types.
func (d *Doc) normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := d.codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value %v: %w", v, err)
	}
	var out any
	if err := d.codec.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return out, nil
}

func (d *Doc) normalizeMap(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := d.normalize(v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func cloneAny(v any) any {
	if m, ok := v.(map[string]any); ok {
		return models.CloneData(m)
	}
	if s, ok := v.([]any); ok {
		return models.CloneData(map[string]any{"": s})[""]
	}
	return v
}

func sortedKeys(ms ...map[string]any) []string {
	set := make(map[string]struct{})
	for _, m := range ms {
		for k := range m {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
