package crdt

import (
	"github.com/blockbind/blockbind.go/pkg/delta"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// diff describes the move from before to after as events, parents first in
// document order. Only nodes reachable in both states report changes of
// their own; nodes carried inside an inserted snapshot are covered by it.
func diff(before, after *view) []Event {
	var events []Event
	covered := make(map[models.ID]bool)

	var walk func(id models.ID)
	walk = func(id models.ID) {
		if covered[id] {
			return
		}
		n := after.nodes[id]
		if old, ok := before.nodes[id]; ok && old.kind == n.kind && before.reachable(id) {
			events = append(events, attrChanges(id, old.attrs, n.attrs)...)
			if n.kind == models.KindText {
				if td := textDelta(old.chars, n.chars); len(td) > 0 {
					events = append(events, TextChange{ID: id, Delta: td})
				}
			} else if cd := childrenDelta(before.children(id), after.children(id), after); len(cd) > 0 {
				events = append(events, ChildrenChange{ID: id, Delta: cd})
				for _, op := range cd {
					if ins, ok := op.(delta.ChildInsert); ok {
						for _, e := range ins.Nodes {
							coverEmbed(e, covered)
						}
					}
				}
			}
		}
		for _, c := range after.children(id) {
			walk(c)
		}
	}
	walk(after.root)
	return events
}

func attrChanges(id models.ID, before, after map[string]any) []Event {
	var out []Event
	for _, k := range sortedKeys(before, after) {
		if !equalValue(before[k], after[k]) {
			out = append(out, AttributeChange{ID: id, Key: k, Old: cloneAny(before[k]), New: cloneAny(after[k])})
		}
	}
	return out
}

func coverEmbed(e delta.Embed, covered map[models.ID]bool) {
	stack := []delta.Embed{e}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id, ok := cur.BlockID(); ok {
			covered[id] = true
		} else if id, ok := cur.TextID(); ok {
			covered[id] = true
		}
		for _, ent := range cur.Delta {
			if ent.Embed != nil {
				stack = append(stack, *ent.Embed)
			}
		}
	}
}

// childrenDelta keeps a longest common subsequence of the two child lists
// in place and deletes or inserts the rest.
func childrenDelta(old, cur []models.ID, after *view) delta.Children {
	var out delta.Children
	walkMatches(len(old), len(cur), matches(old, cur), func(i, j int) {
		switch {
		case i >= 0 && j >= 0:
			if k := len(out); k > 0 {
				if r, ok := out[k-1].(delta.ChildRetain); ok {
					r.N++
					out[k-1] = r
					return
				}
			}
			out = append(out, delta.ChildRetain{N: 1})
		case i >= 0:
			if k := len(out); k > 0 {
				if del, ok := out[k-1].(delta.ChildDelete); ok {
					del.N++
					del.IDs = append(del.IDs, old[i])
					out[k-1] = del
					return
				}
			}
			out = append(out, delta.ChildDelete{N: 1, IDs: []models.ID{old[i]}})
		default:
			snap := after.snapshot(cur[j])
			if k := len(out); k > 0 {
				if ins, ok := out[k-1].(delta.ChildInsert); ok {
					ins.Nodes = append(ins.Nodes, snap)
					out[k-1] = ins
					return
				}
			}
			out = append(out, delta.ChildInsert{Nodes: []delta.Embed{snap}})
		}
	})
	if k := len(out); k > 0 {
		if _, ok := out[k-1].(delta.ChildRetain); ok {
			out = out[:k-1]
		}
	}
	return out
}

// textDelta keeps a longest common subsequence of the two character
// sequences, reformatting kept characters whose marks changed, and deletes
// or inserts the rest.
func textDelta(old, cur []char) delta.Text {
	runes := func(cs []char) []rune {
		out := make([]rune, len(cs))
		for i, c := range cs {
			out[i] = c.r
		}
		return out
	}
	var out delta.Text
	walkMatches(len(old), len(cur), matches(runes(old), runes(cur)), func(i, j int) {
		switch {
		case i >= 0 && j >= 0:
			out = append(out, delta.Retain{N: 1, Marks: old[i].marks.Diff(cur[j].marks)})
		case i >= 0:
			out = append(out, delta.Delete{N: 1})
		default:
			out = append(out, delta.Insert{Text: string(cur[j].r), Marks: cur[j].marks.Clone()})
		}
	})
	return out.Compact()
}

// maxCells bounds the table of the subsequence search. Larger differing
// middles keep only their common prefix and suffix.
const maxCells = 1 << 20

// matches returns the index pairs of a longest common subsequence of a and
// b, in increasing order.
func matches[T comparable](a, b []T) [][2]int {
	var out [][2]int
	lo := 0
	for lo < len(a) && lo < len(b) && a[lo] == b[lo] {
		out = append(out, [2]int{lo, lo})
		lo++
	}
	ha, hb := len(a), len(b)
	for ha > lo && hb > lo && a[ha-1] == b[hb-1] {
		ha--
		hb--
	}

	ma, mb := a[lo:ha], b[lo:hb]
	if len(ma) > 0 && len(mb) > 0 && len(ma)*len(mb) <= maxCells {
		// lengths[i][j] is the subsequence length of ma[i:] and mb[j:]
		lengths := make([][]int, len(ma)+1)
		for i := range lengths {
			lengths[i] = make([]int, len(mb)+1)
		}
		for i := len(ma) - 1; i >= 0; i-- {
			for j := len(mb) - 1; j >= 0; j-- {
				if ma[i] == mb[j] {
					lengths[i][j] = lengths[i+1][j+1] + 1
				} else {
					lengths[i][j] = max(lengths[i+1][j], lengths[i][j+1])
				}
			}
		}
		for i, j := 0, 0; i < len(ma) && j < len(mb); {
			switch {
			case ma[i] == mb[j]:
				out = append(out, [2]int{lo + i, lo + j})
				i++
				j++
			case lengths[i+1][j] >= lengths[i][j+1]:
				i++
			default:
				j++
			}
		}
	}

	for k := 0; ha+k < len(a); k++ {
		out = append(out, [2]int{ha + k, hb + k})
	}
	return out
}

// walkMatches calls fn for every step of the edit script between sequences
// of length na and nb: (i, j) for a kept pair, (i, -1) for a deletion and
// (-1, j) for an insertion. Deletions come before insertions in each gap.
func walkMatches(na, nb int, m [][2]int, fn func(i, j int)) {
	i, j := 0, 0
	for _, p := range append(m, [2]int{na, nb}) {
		for ; i < p[0]; i++ {
			fn(i, -1)
		}
		for ; j < p[1]; j++ {
			fn(-1, j)
		}
		if i < na && j < nb {
			fn(i, j)
			i++
			j++
		}
	}
}
