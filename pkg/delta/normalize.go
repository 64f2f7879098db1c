package delta

import (
	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// LooseID derives the identifier of the text run that holds anonymous
// characters of a block without any text run of its own.
func LooseID(block models.ID) models.ID {
	return block + models.ID(constants.LooseTextSuffix)
}

// Normalize folds the anonymous character runs of a block's delta into the
// nearest preceding text run, or the next one when none precedes them.
// A block without any text run keeps them in a loose run named by LooseID,
// placed where the first anonymous run appeared. Embedded nodes without an
// identifier are replaced by their own entries. The input is not modified.
func Normalize(e Embed) Embed {
	bid, ok := e.BlockID()
	if !ok || !hasAnonymous(e.Delta) {
		return e
	}

	out := make([]Entry, 0, len(e.Delta))
	var pending []Entry
	pendingAt := -1
	lastText := -1

	for _, ent := range flatten(e.Delta) {
		if ent.IsText() {
			if ent.Text == "" {
				continue
			}
			if lastText >= 0 {
				out[lastText] = withDelta(out[lastText], appendEntries(out[lastText].Embed.Delta, ent))
				continue
			}
			if pendingAt < 0 {
				pendingAt = len(out)
			}
			pending = append(pending, ent)
			continue
		}
		out = append(out, ent)
		if _, isText := ent.Embed.TextID(); isText {
			lastText = len(out) - 1
			if len(pending) > 0 {
				out[lastText] = withDelta(out[lastText], appendEntries(pending, out[lastText].Embed.Delta...))
				pending = nil
			}
		}
	}

	if len(pending) > 0 {
		loose := Entry{Embed: &Embed{
			Attrs: map[string]any{constants.AttrTextID: string(LooseID(bid))},
			Delta: pending,
		}}
		out = append(out[:pendingAt], append([]Entry{loose}, out[pendingAt:]...)...)
	}

	return Embed{Attrs: e.Attrs, Delta: out}
}

func hasAnonymous(entries []Entry) bool {
	for _, ent := range entries {
		if ent.IsText() || !ent.Embed.identified() {
			return true
		}
	}
	return false
}

func (e *Embed) identified() bool {
	if _, ok := e.BlockID(); ok {
		return true
	}
	_, ok := e.TextID()
	return ok
}

// flatten splices the entries of unidentified embeds into their place.
func flatten(entries []Entry) []Entry {
	var out []Entry
	stack := [][]Entry{entries}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if len(top) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		ent := top[0]
		stack[len(stack)-1] = top[1:]
		if ent.Embed != nil && !ent.Embed.identified() {
			stack = append(stack, ent.Embed.Delta)
			continue
		}
		out = append(out, ent)
	}
	return out
}

func appendEntries(dst []Entry, more ...Entry) []Entry {
	out := make([]Entry, 0, len(dst)+len(more))
	out = append(out, dst...)
	return append(out, more...)
}

func withDelta(ent Entry, d []Entry) Entry {
	cp := *ent.Embed
	cp.Delta = d
	ent.Embed = &cp
	return ent
}
