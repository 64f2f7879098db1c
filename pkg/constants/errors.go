package constants

import "errors"

// Errors
var (
	ErrNodeNotFound        = errors.New("node not found")
	ErrRootImmutable       = errors.New("document root cannot be removed or moved")
	ErrNotBlock            = errors.New("node is not a block")
	ErrNotText             = errors.New("node is not a text run")
	ErrInvalidPath         = errors.New("invalid path")
	ErrOffsetOutOfRange    = errors.New("offset out of range")
	ErrCompositeOp         = errors.New("composite operation cannot be applied to the local tree directly")
	ErrUnknownOp           = errors.New("unknown local operation")
	ErrUnknownEvent        = errors.New("unknown mutation event")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrMalformedDelta      = errors.New("malformed delta")
	ErrResyncRequired      = errors.New("structural resync required")
	ErrDuplicateID         = errors.New("identifier already in use")
	ErrClosed              = errors.New("binding is closed")
)

var (
	ErrCannotIndent            = errors.New("block has no previous sibling block to nest under")
	ErrCannotLift              = errors.New("block is already at the top level")
	ErrSelectionOutsideSubtree = errors.New("selection is not contained in the moved subtree")
	ErrNoSelection             = errors.New("no selection")
)
