package extractor

import (
	"math"

	"github.com/ledongthuc/pdf"
)

// pathRects walks a page's content streams and returns every painted
// rectangle and straight rule in default user space. Page.Content only
// reports "re" operands, so rules drawn with "m"/"l" would be lost.
// Line segments come back as zero-thickness rects for edgesFromRects.
func pathRects(contents pdf.Value) []Rect {
	w := &pathWalker{ctm: identity}
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			pdf.Interpret(contents.Index(i), w.do)
		}
	} else {
		pdf.Interpret(contents, w.do)
	}
	return w.rects
}

type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m×n, the transform that applies m first.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) point {
	return point{x*m[0] + y*m[2] + m[4], x*m[1] + y*m[3] + m[5]}
}

type pathWalker struct {
	ctm   matrix
	saved []matrix

	start, cur point
	path       []Rect
	rects      []Rect
}

func (w *pathWalker) do(stk *pdf.Stack, op string) {
	n := stk.Len()
	args := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = stk.Pop().Float64()
	}

	switch op {
	case "q":
		w.saved = append(w.saved, w.ctm)
	case "Q":
		if len(w.saved) > 0 {
			w.ctm = w.saved[len(w.saved)-1]
			w.saved = w.saved[:len(w.saved)-1]
		}
	case "cm":
		if n == 6 {
			w.ctm = matrix{args[0], args[1], args[2], args[3], args[4], args[5]}.mul(w.ctm)
		}
	case "m":
		if n == 2 {
			w.cur = w.ctm.apply(args[0], args[1])
			w.start = w.cur
		}
	case "l":
		if n == 2 {
			p := w.ctm.apply(args[0], args[1])
			w.segment(w.cur, p)
			w.cur = p
		}
	case "c":
		if n == 6 {
			w.cur = w.ctm.apply(args[4], args[5])
		}
	case "v", "y":
		if n == 4 {
			w.cur = w.ctm.apply(args[2], args[3])
		}
	case "re":
		if n == 4 {
			x, y, rw, rh := args[0], args[1], args[2], args[3]
			a, b := w.ctm.apply(x, y), w.ctm.apply(x+rw, y+rh)
			w.path = append(w.path, Rect{X0: a.x, Y0: a.y, X1: b.x, Y1: b.y})
			w.start, w.cur = a, a
		}
	case "h":
		w.closePath()
	case "S", "f", "F", "f*", "B", "B*":
		w.paint()
	case "s", "b", "b*":
		w.closePath()
		w.paint()
	case "n":
		w.path = w.path[:0]
	}
}

// segment keeps axis-aligned segments only; diagonals never bound a cell.
func (w *pathWalker) segment(a, b point) {
	if math.Abs(a.x-b.x) > lineThickness && math.Abs(a.y-b.y) > lineThickness {
		return
	}
	w.path = append(w.path, Rect{X0: a.x, Y0: a.y, X1: b.x, Y1: b.y})
}

func (w *pathWalker) closePath() {
	if w.cur != w.start {
		w.segment(w.cur, w.start)
	}
	w.cur = w.start
}

func (w *pathWalker) paint() {
	w.rects = append(w.rects, w.path...)
	w.path = w.path[:0]
}
