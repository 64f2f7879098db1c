package crdt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/automerge/automerge-go"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// Layout of the automerge document. The automerge root map holds one map
// per node under "n:<id>" and the attributes of the document root under
// "a:<key>", so no container is ever created by two replicas at once.
//
//	n:<id>  kind   "block" | "text"
//	        at     placement, CBOR
//	        a:<k>  attribute value, CBOR
//	        chars  list of character maps {c: string, m:<k>: CBOR}
//
// Attribute and mark values are CBOR encoded so every replica decodes them
// to the same dynamic types.
const (
	nodePrefix = "n:"
	attrPrefix = "a:"
	markPrefix = "m:"
	keyKind    = "kind"
	keyAt      = "at"
	keyChars   = "chars"
	keyChar    = "c"
)

// placement is a last-writer-wins register: a node has at most one parent,
// so concurrent moves of the same node converge on one of them.
type placement struct {
	Parent string `cbor:"p"`
	Order  string `cbor:"o"`
}

// change is one buffered write against the automerge document.
type change func(am *automerge.Doc) error

func kindFromString(s string) models.Kind {
	switch s {
	case models.KindBlock.String():
		return models.KindBlock
	case models.KindText.String():
		return models.KindText
	}
	return 0
}

func (d *Doc) nodeMap(am *automerge.Doc, id models.ID) (*automerge.Map, error) {
	if id == d.root {
		return am.RootMap(), nil
	}
	v, err := am.RootMap().Get(nodePrefix + string(id))
	if err != nil {
		return nil, err
	}
	if v.Kind() != automerge.KindMap {
		return nil, fmt.Errorf("%w: %s", constants.ErrNodeNotFound, id)
	}
	return v.Map(), nil
}

func (d *Doc) charList(am *automerge.Doc, id models.ID) (*automerge.List, error) {
	m, err := d.nodeMap(am, id)
	if err != nil {
		return nil, err
	}
	v, err := m.Get(keyChars)
	if err != nil {
		return nil, err
	}
	if v.Kind() != automerge.KindList {
		return nil, fmt.Errorf("%w: %s", constants.ErrNotText, id)
	}
	return v.List(), nil
}

func (d *Doc) charMap(l *automerge.List, i int) (*automerge.Map, error) {
	v, err := l.Get(i)
	if err != nil {
		return nil, err
	}
	if v.Kind() != automerge.KindMap {
		return nil, fmt.Errorf("%w: character %d", constants.ErrOffsetOutOfRange, i)
	}
	return v.Map(), nil
}

// setValue writes v under key, or deletes key when v is nil.
func (d *Doc) setValue(m *automerge.Map, key string, v any) error {
	if v == nil {
		cur, err := m.Get(key)
		if err != nil {
			return err
		}
		if cur.Kind() == automerge.KindVoid {
			return nil
		}
		return m.Delete(key)
	}
	b, err := d.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value %v: %w", v, err)
	}
	return m.Set(key, b)
}

func (d *Doc) decodeValue(v *automerge.Value) (any, error) {
	if v.Kind() != automerge.KindBytes {
		return nil, fmt.Errorf("%w: value of kind %v", constants.ErrMalformedDelta, v.Kind())
	}
	var out any
	if err := d.codec.Unmarshal(v.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return out, nil
}

func (d *Doc) createNode(id models.ID, kind models.Kind, attrs map[string]any) change {
	return func(am *automerge.Doc) error {
		if err := am.RootMap().Set(nodePrefix+string(id), automerge.NewMap()); err != nil {
			return err
		}
		m, err := d.nodeMap(am, id)
		if err != nil {
			return err
		}
		if err := m.Set(keyKind, kind.String()); err != nil {
			return err
		}
		for k, v := range attrs {
			if err := d.setValue(m, attrPrefix+k, v); err != nil {
				return err
			}
		}
		if kind == models.KindText {
			return m.Set(keyChars, automerge.NewList())
		}
		return nil
	}
}

func (d *Doc) setPlacement(id models.ID, p placement) change {
	return func(am *automerge.Doc) error {
		m, err := d.nodeMap(am, id)
		if err != nil {
			return err
		}
		b, err := d.codec.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode placement of %s: %w", id, err)
		}
		return m.Set(keyAt, b)
	}
}

func (d *Doc) setAttr(id models.ID, key string, v any) change {
	return func(am *automerge.Doc) error {
		m, err := d.nodeMap(am, id)
		if err != nil {
			return err
		}
		return d.setValue(m, attrPrefix+key, v)
	}
}

func (d *Doc) insertChars(id models.ID, offset int, text string, marks models.Marks) change {
	return func(am *automerge.Doc) error {
		l, err := d.charList(am, id)
		if err != nil {
			return err
		}
		i := offset
		for _, r := range text {
			if err := l.Insert(i, automerge.NewMap()); err != nil {
				return err
			}
			m, err := d.charMap(l, i)
			if err != nil {
				return err
			}
			if err := m.Set(keyChar, string(r)); err != nil {
				return err
			}
			for k, v := range marks {
				if err := d.setValue(m, markPrefix+k, v); err != nil {
					return err
				}
			}
			i++
		}
		return nil
	}
}

func (d *Doc) deleteChars(id models.ID, offset, length int) change {
	return func(am *automerge.Doc) error {
		l, err := d.charList(am, id)
		if err != nil {
			return err
		}
		for range length {
			if err := l.Delete(offset); err != nil {
				return err
			}
		}
		return nil
	}
}

func (d *Doc) formatChars(id models.ID, offset, length int, patch models.Marks) change {
	return func(am *automerge.Doc) error {
		l, err := d.charList(am, id)
		if err != nil {
			return err
		}
		for i := offset; i < offset+length; i++ {
			m, err := d.charMap(l, i)
			if err != nil {
				return err
			}
			for k, v := range patch {
				if err := d.setValue(m, markPrefix+k, v); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// materialize decodes the whole automerge document. Nodes that cannot be
// decoded are logged and left out.
func (d *Doc) materialize(am *automerge.Doc) *view {
	v := newView(d.root)
	vals, err := am.RootMap().Values()
	if err != nil {
		d.log.Error("failed to read the document", "error", err)
		return v
	}
	root := v.nodes[d.root]
	for key, val := range vals {
		switch {
		case strings.HasPrefix(key, attrPrefix):
			a, err := d.decodeValue(val)
			if err != nil {
				d.log.Error("skipping unreadable root attribute", "key", key, "error", err)
				continue
			}
			root.attrs[strings.TrimPrefix(key, attrPrefix)] = a
		case strings.HasPrefix(key, nodePrefix) && val.Kind() == automerge.KindMap:
			id := models.ID(strings.TrimPrefix(key, nodePrefix))
			n, err := d.readNode(val.Map())
			if err != nil {
				d.log.Error("skipping unreadable node", "id", id, "error", err)
				continue
			}
			v.nodes[id] = n
		}
	}
	v.index()
	return v
}

func (d *Doc) readNode(m *automerge.Map) (*vnode, error) {
	vals, err := m.Values()
	if err != nil {
		return nil, err
	}
	n := &vnode{attrs: make(map[string]any)}
	for key, val := range vals {
		switch {
		case key == keyKind:
			n.kind = kindFromString(val.Str())
		case key == keyAt:
			var p placement
			if err := d.codec.Unmarshal(val.Bytes(), &p); err != nil {
				return nil, fmt.Errorf("failed to decode placement: %w", err)
			}
			n.parent, n.order = models.ID(p.Parent), p.Order
		case key == keyChars:
			if val.Kind() != automerge.KindList {
				return nil, fmt.Errorf("%w: characters of kind %v", constants.ErrNotText, val.Kind())
			}
			if n.chars, err = d.readChars(val.List()); err != nil {
				return nil, err
			}
		case strings.HasPrefix(key, attrPrefix):
			a, err := d.decodeValue(val)
			if err != nil {
				return nil, err
			}
			n.attrs[strings.TrimPrefix(key, attrPrefix)] = a
		}
	}
	if n.kind == 0 {
		return nil, fmt.Errorf("%w: node without kind", constants.ErrMalformedDelta)
	}
	return n, nil
}

func (d *Doc) readChars(l *automerge.List) ([]char, error) {
	vals, err := l.Values()
	if err != nil {
		return nil, err
	}
	out := make([]char, 0, len(vals))
	for _, val := range vals {
		if val.Kind() != automerge.KindMap {
			continue
		}
		fields, err := val.Map().Values()
		if err != nil {
			return nil, err
		}
		var c char
		for key, f := range fields {
			switch {
			case key == keyChar:
				c.r, _ = utf8.DecodeRuneInString(f.Str())
			case strings.HasPrefix(key, markPrefix):
				mv, err := d.decodeValue(f)
				if err != nil {
					return nil, err
				}
				if c.marks == nil {
					c.marks = make(models.Marks)
				}
				c.marks[strings.TrimPrefix(key, markPrefix)] = mv
			}
		}
		out = append(out, c)
	}
	return out, nil
}
