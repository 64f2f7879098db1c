// The [blockbind] package binds a replicated block document to a plain,
// mutable tree that a rich-text editor can render and edit.
//
// # Stores and bindings
//
// The shared document lives in a [crdt.Store]. [crdt.Doc] is an in-memory
// replicated implementation of it: replicas exchange CBOR-encoded updates
// through [crdt.Doc.OnUpdate] and [crdt.Doc.ApplyUpdate], and converge no
// matter in which order the updates arrive.
//
// A [Binding] attaches to one store and keeps a local [tree.Tree] in step
// with it. Every committed store transaction, remote or local, is turned
// into local tree operations by the [github.com/blockbind/blockbind.go/pkg/translate]
// package and published to subscribers as one [Epoch].
//
// # Local edits
//
// Editors never change the local tree directly. [Binding.ApplyLocalOp] writes
// the operation into the store first, as one transaction tagged with the
// binding's session; the local tree catches up when the store echoes that
// transaction back. Split and merge are written as a single transaction each,
// so no replica ever sees half of them.
//
// An operation that targets a node the store no longer holds is not an
// error: the returned [Result] reports Applied false.
//
// # Selection
//
// The selection is kept as node identifiers and character offsets, which
// survive reordering, and is remapped after every epoch. When the node of a
// selection point is deleted, the point collapses to the end of the nearest
// surviving ancestor. [Binding.Indent] and [Binding.Lift] keep a selection
// inside the moved block at the same place relative to the block.
//
// # Recovery
//
// Events that cannot be translated are never fatal. The affected subtree is
// rebuilt from the store snapshot and reported in [Epoch.Resynced].
// [Binding.Check] audits the whole tree against the store.
package blockbind
