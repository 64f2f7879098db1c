package blockbind

import (
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/tree"
)

// OpError reports a local operation the binding refused or failed to write.
// A stale operation is not an error; see Result.Applied.
type OpError struct {
	Op  tree.Op
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("unable to apply %v: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
