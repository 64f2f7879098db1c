package translate

import (
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// UnresolvedError reports an event that cites a node the local tree does
// not hold yet. The event is retried later in the same batch.
type UnresolvedError struct {
	ID models.ID
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%v: %s", constants.ErrUnresolvedReference, e.ID)
}

func (e *UnresolvedError) Unwrap() error {
	return constants.ErrUnresolvedReference
}

// MalformedDeltaError reports an event whose delta does not fit the local
// node it targets. The node is resynced from the store.
type MalformedDeltaError struct {
	ID     models.ID
	Reason string
}

func (e *MalformedDeltaError) Error() string {
	return fmt.Sprintf("%v for %s: %s", constants.ErrMalformedDelta, e.ID, e.Reason)
}

func (e *MalformedDeltaError) Unwrap() error {
	return constants.ErrMalformedDelta
}

func malformed(id models.ID, format string, args ...any) error {
	return &MalformedDeltaError{ID: id, Reason: fmt.Sprintf(format, args...)}
}
