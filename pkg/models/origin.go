package models

import "fmt"

// OriginKind tags who produced a CRDT mutation.
type OriginKind uint8

const (
	// OriginRemote is anything not written by a binding's own applier: peer
	// updates, snapshots, replays.
	OriginRemote OriginKind = iota
	// OriginLocal marks a transaction written by a binding's local mutation applier.
	OriginLocal
)

func (k OriginKind) String() string {
	if k == OriginLocal {
		return "local"
	}
	return "remote"
}

// Origin is attached to every CRDT transaction.
//
// Session identifies the binding that issued a Local write and Seq orders
// that binding's writes, so a binding can tell the echo of its own write
// apart from a change made by another session on the same replica.
type Origin struct {
	Kind    OriginKind
	Session string
	Seq     uint64
}

// Remote returns an origin for updates received from peers.
func Remote(session string) Origin {
	return Origin{Kind: OriginRemote, Session: session}
}

// IsLocalTo reports whether the origin is a Local write from session.
func (o Origin) IsLocalTo(session string) bool {
	return o.Kind == OriginLocal && o.Session == session
}

func (o Origin) String() string {
	if o.Kind == OriginLocal {
		return fmt.Sprintf("local(%s#%d)", o.Session, o.Seq)
	}
	if o.Session == "" {
		return "remote"
	}
	return fmt.Sprintf("remote(%s)", o.Session)
}
