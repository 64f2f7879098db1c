package crdt

import (
	"fmt"

	"github.com/blockbind/blockbind.go/pkg/models"
)

// ApplyUpdate loads changes produced by another replica, either an update
// from OnUpdate or a full state from EncodeState, and delivers the
// resulting events tagged with origin. Changes already known are skipped,
// so applying the same update twice is harmless. Changes whose
// dependencies have not arrived yet are held by automerge until they do.
func (d *Doc) ApplyUpdate(b []byte, origin models.Origin) error {
	d.mu.Lock()
	if err := d.am.LoadIncremental(b); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to load update: %w", err)
	}
	// the next local update carries local changes only
	_ = d.am.SaveIncremental()

	after := d.materialize(d.am)
	if events := diff(d.view, after); len(events) > 0 {
		d.pending = append(d.pending, pending{batch: Batch{Origin: origin, Events: events}})
	}
	d.view = after
	d.mu.Unlock()

	d.flush()
	return nil
}

// EncodeState returns the whole document history in the automerge save
// format. A new replica catches up by applying it with ApplyUpdate.
func (d *Doc) EncodeState() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.am.Save(), nil
}
