package extractor

import (
	"math"
	"sort"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

// Fixed ruled-grid tolerances, in PDF units. These are deliberately
// conservative and never tuned per document.
const (
	SnapTolerance         = 5.0
	JoinTolerance         = 5.0
	IntersectionTolerance = 3.0
	// Rectangles thinner than this are drawn rules, not boxes.
	lineThickness = 2.0
	minEdgeLength = 3.0
)

// Rect is an axis-aligned rectangle drawn on the page.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// GridDetector finds tables whose cells are delimited by drawn rules.
type GridDetector struct {
	Snap         float64
	Join         float64
	Intersection float64
}

// DefaultGridDetector returns a detector with the fixed tolerances.
func DefaultGridDetector() GridDetector {
	return GridDetector{Snap: SnapTolerance, Join: JoinTolerance, Intersection: IntersectionTolerance}
}

// edge is a horizontal (pos = y, from..to over x) or vertical
// (pos = x, from..to over y) rule.
type edge struct {
	pos, from, to float64
}

type point struct {
	x, y float64
}

type cell struct {
	x0, x1, bottom, top float64
}

// Detect returns the ruled tables of a page, top to bottom. Each table is
// a rectangular grid of cell text; grid positions without a cell are "".
func (d GridDetector) Detect(rects []Rect, glyphs []Glyph) []models.Table {
	hs, vs := edgesFromRects(rects)
	if len(hs) < 2 || len(vs) < 2 {
		return nil
	}
	hs = joinEdges(snapEdges(hs, d.Snap), d.Join)
	vs = joinEdges(snapEdges(vs, d.Snap), d.Join)

	pts := d.intersections(hs, vs)
	cells := findCells(pts)
	if len(cells) == 0 {
		return nil
	}

	groups := groupCells(cells)
	sort.SliceStable(groups, func(i, j int) bool {
		ti, tj := groupTop(groups[i]), groupTop(groups[j])
		if ti != tj {
			return ti > tj
		}
		return groupLeft(groups[i]) < groupLeft(groups[j])
	})

	tables := make([]models.Table, 0, len(groups))
	for _, g := range groups {
		tables = append(tables, buildTable(g, glyphs))
	}
	return tables
}

func edgesFromRects(rects []Rect) (hs, vs []edge) {
	for _, r := range rects {
		x0, x1 := math.Min(r.X0, r.X1), math.Max(r.X0, r.X1)
		y0, y1 := math.Min(r.Y0, r.Y1), math.Max(r.Y0, r.Y1)
		w, h := x1-x0, y1-y0
		switch {
		case h <= lineThickness && w >= minEdgeLength:
			hs = append(hs, edge{pos: (y0 + y1) / 2, from: x0, to: x1})
		case w <= lineThickness && h >= minEdgeLength:
			vs = append(vs, edge{pos: (x0 + x1) / 2, from: y0, to: y1})
		case w >= minEdgeLength && h >= minEdgeLength:
			hs = append(hs, edge{pos: y0, from: x0, to: x1}, edge{pos: y1, from: x0, to: x1})
			vs = append(vs, edge{pos: x0, from: y0, to: y1}, edge{pos: x1, from: y0, to: y1})
		}
	}
	return hs, vs
}

// snapEdges clusters edges whose positions are within tol of their
// neighbour and moves each cluster to its mean position.
func snapEdges(edges []edge, tol float64) []edge {
	out := append([]edge(nil), edges...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].pos < out[j].pos })

	start := 0
	for i := 1; i <= len(out); i++ {
		if i < len(out) && out[i].pos-out[i-1].pos <= tol {
			continue
		}
		sum := 0.0
		for _, e := range out[start:i] {
			sum += e.pos
		}
		mean := sum / float64(i-start)
		for k := start; k < i; k++ {
			out[k].pos = mean
		}
		start = i
	}
	return out
}

// joinEdges merges collinear edges that overlap or are separated by at
// most tol.
func joinEdges(edges []edge, tol float64) []edge {
	sorted := append([]edge(nil), edges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].pos != sorted[j].pos {
			return sorted[i].pos < sorted[j].pos
		}
		return sorted[i].from < sorted[j].from
	})

	var out []edge
	for _, e := range sorted {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.pos == e.pos && e.from <= last.to+tol {
				last.to = math.Max(last.to, e.to)
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

type junction struct {
	h map[int]bool
	v map[int]bool
}

func (d GridDetector) intersections(hs, vs []edge) map[point]*junction {
	tol := d.Intersection
	pts := make(map[point]*junction)
	for vi, v := range vs {
		for hi, h := range hs {
			if v.pos < h.from-tol || v.pos > h.to+tol {
				continue
			}
			if h.pos < v.from-tol || h.pos > v.to+tol {
				continue
			}
			p := point{x: v.pos, y: h.pos}
			j, ok := pts[p]
			if !ok {
				j = &junction{h: map[int]bool{}, v: map[int]bool{}}
				pts[p] = j
			}
			j.h[hi] = true
			j.v[vi] = true
		}
	}
	return pts
}

func shares(a, b map[int]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// findCells builds the smallest cell hanging from each intersection: the
// nearest point below and to the right such that all four corners exist
// and are connected by rules.
func findCells(pts map[point]*junction) []cell {
	ordered := make([]point, 0, len(pts))
	for p := range pts {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].y != ordered[j].y {
			return ordered[i].y > ordered[j].y
		}
		return ordered[i].x < ordered[j].x
	})

	var cells []cell
	for i, p := range ordered {
		var below, right []point
		for _, q := range ordered[i+1:] {
			if q.x == p.x && q.y < p.y {
				below = append(below, q)
			}
			if q.y == p.y && q.x > p.x {
				right = append(right, q)
			}
		}
		sort.Slice(below, func(a, b int) bool { return below[a].y > below[b].y })

		jp := pts[p]
	search:
		for _, b := range below {
			if !shares(jp.v, pts[b].v) {
				continue
			}
			for _, r := range right {
				if !shares(jp.h, pts[r].h) {
					continue
				}
				c := point{x: r.x, y: b.y}
				jc, ok := pts[c]
				if !ok {
					continue
				}
				if shares(jc.v, pts[r].v) && shares(jc.h, pts[b].h) {
					cells = append(cells, cell{x0: p.x, x1: r.x, bottom: b.y, top: p.y})
					break search
				}
			}
		}
	}
	return cells
}

func (c cell) corners() [4]point {
	return [4]point{{c.x0, c.top}, {c.x1, c.top}, {c.x0, c.bottom}, {c.x1, c.bottom}}
}

// groupCells splits cells into tables: cells sharing a corner belong to
// the same table.
func groupCells(cells []cell) [][]cell {
	remaining := append([]cell(nil), cells...)
	var groups [][]cell
	for len(remaining) > 0 {
		group := []cell{remaining[0]}
		corners := map[point]bool{}
		for _, p := range remaining[0].corners() {
			corners[p] = true
		}
		remaining = remaining[1:]

		for grew := true; grew; {
			grew = false
			rest := remaining[:0]
			for _, c := range remaining {
				joined := false
				for _, p := range c.corners() {
					if corners[p] {
						joined = true
						break
					}
				}
				if !joined {
					rest = append(rest, c)
					continue
				}
				group = append(group, c)
				for _, p := range c.corners() {
					corners[p] = true
				}
				grew = true
			}
			remaining = rest
		}
		groups = append(groups, group)
	}
	return groups
}

func groupTop(g []cell) float64 {
	top := math.Inf(-1)
	for _, c := range g {
		top = math.Max(top, c.top)
	}
	return top
}

func groupLeft(g []cell) float64 {
	left := math.Inf(1)
	for _, c := range g {
		left = math.Min(left, c.x0)
	}
	return left
}

// buildTable lays the cells out as rows (by top edge, top to bottom) and
// columns (by left edge, left to right) and fills them with glyph text.
func buildTable(cells []cell, glyphs []Glyph) models.Table {
	var tops, lefts []float64
	seenTop, seenLeft := map[float64]bool{}, map[float64]bool{}
	for _, c := range cells {
		if !seenTop[c.top] {
			seenTop[c.top] = true
			tops = append(tops, c.top)
		}
		if !seenLeft[c.x0] {
			seenLeft[c.x0] = true
			lefts = append(lefts, c.x0)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(tops)))
	sort.Float64s(lefts)

	rowOf := make(map[float64]int, len(tops))
	for i, t := range tops {
		rowOf[t] = i
	}
	colOf := make(map[float64]int, len(lefts))
	for i, l := range lefts {
		colOf[l] = i
	}

	table := make(models.Table, len(tops))
	for i := range table {
		table[i] = make([]string, len(lefts))
	}
	for _, c := range cells {
		table[rowOf[c.top]][colOf[c.x0]] = cellText(c.glyphsInside(glyphs))
	}
	return table
}

// glyphsInside selects glyphs whose visual centre lies in the cell.
func (c cell) glyphsInside(glyphs []Glyph) []Glyph {
	var in []Glyph
	for _, g := range glyphs {
		cx := g.X + g.width()/2
		cy := g.Y + 0.3*g.size()
		if cx >= c.x0 && cx < c.x1 && cy >= c.bottom && cy < c.top {
			in = append(in, g)
		}
	}
	return in
}
