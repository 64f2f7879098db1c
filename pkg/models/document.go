package models

import (
	"fmt"

	"github.com/gofrs/uuid"
)

// ID identifies a block or a text run. It is assigned once at creation,
// is the same on every replica, and is never reused.
type ID string

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id == ""
}

// NewID mints a fresh random identifier.
func NewID() ID {
	return ID(uuid.Must(uuid.NewV4()).String())
}

// ParseID validates that s is a UUID-shaped identifier minted by NewID.
// Identifiers coming from other sources (e.g. the document root) are opaque
// strings and do not need to pass this check.
func ParseID(s string) (ID, error) {
	u, err := uuid.FromString(s)
	if err != nil {
		return "", fmt.Errorf("failed to parse identifier %q: %w", s, err)
	}
	return ID(u.String()), nil
}

// Kind distinguishes structural blocks from text runs.
type Kind uint8

const (
	KindBlock Kind = iota + 1
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Child is one entry of a relation: an ordered child of a block.
type Child struct {
	ID   ID
	Kind Kind
}
