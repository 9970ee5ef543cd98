package graph

import "slices"

// AddDFG records that the value of from flows into to. Both sides are
// updated; duplicates are ignored.
func AddDFG(from, to Node) {
	if IsNil(from) || IsNil(to) {
		return
	}
	fb, tb := from.Base(), to.Base()
	if !slices.Contains(fb.nextDFG, to) {
		fb.nextDFG = append(fb.nextDFG, to)
	}
	if !slices.Contains(tb.prevDFG, from) {
		tb.prevDFG = append(tb.prevDFG, from)
	}
}

// RemoveDFG deletes the edge from→to on both sides.
func RemoveDFG(from, to Node) {
	if IsNil(from) || IsNil(to) {
		return
	}
	fb, tb := from.Base(), to.Base()
	fb.nextDFG = slices.DeleteFunc(fb.nextDFG, func(n Node) bool { return n == to })
	tb.prevDFG = slices.DeleteFunc(tb.prevDFG, func(n Node) bool { return n == from })
}
