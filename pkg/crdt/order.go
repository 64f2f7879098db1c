package crdt

import "strings"

// Sibling order is a dense fractional key: a string of base-62 digits read
// as a number in [0, 1). A key never ends in the zero digit, so there is
// always room between two keys. Siblings with equal keys, which only
// concurrent inserts at the same spot produce, are ordered by identifier.
const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// between returns a key strictly greater than lo and strictly less than
// hi. An empty lo is the lower bound; bounded false means no upper bound.
// lo must be less than hi when bounded.
func between(lo, hi string, bounded bool) string {
	if bounded {
		n := 0
		for n < len(hi) && digitAt(lo, n) == hi[n] {
			n++
		}
		if n > 0 {
			rest := ""
			if n < len(lo) {
				rest = lo[n:]
			}
			return hi[:n] + between(rest, hi[n:], true)
		}
	}
	da := 0
	if lo != "" {
		da = strings.IndexByte(digits, lo[0])
	}
	db := len(digits)
	if bounded {
		db = strings.IndexByte(digits, hi[0])
	}
	if db-da > 1 {
		return string(digits[(da+db+1)/2])
	}
	if bounded && len(hi) > 1 {
		return hi[:1]
	}
	rest := ""
	if lo != "" {
		rest = lo[1:]
	}
	return string(digits[da]) + between(rest, "", false)
}

func digitAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return digits[0]
}
