package extractor

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Glyph is one positioned text run in PDF user space (y grows upwards,
// Y is the baseline).
type Glyph struct {
	X, Y float64
	W    float64
	Size float64
	S    string
}

const (
	// Horizontal gaps are measured in font sizes.
	wordGapFactor   = 0.2
	columnGapFactor = 1.0
	// A baseline drop larger than this many font sizes leaves a blank line.
	blankLineFactor = 2.0
	defaultFontSize = 10.0
)

type textLine struct {
	y      float64
	size   float64
	glyphs []Glyph
}

func (g Glyph) size() float64 {
	if g.Size <= 0 {
		return defaultFontSize
	}
	return g.Size
}

// width falls back to an average advance when the font carries no widths.
func (g Glyph) width() float64 {
	if g.W > 0 {
		return g.W
	}
	return 0.5 * g.size() * float64(utf8.RuneCountInString(g.S))
}

// groupLines drops whitespace glyphs and groups the rest by baseline,
// top to bottom, each line ordered left to right.
func groupLines(glyphs []Glyph) []textLine {
	visible := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) != "" {
			visible = append(visible, g)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Y != visible[j].Y {
			return visible[i].Y > visible[j].Y
		}
		return visible[i].X < visible[j].X
	})

	var lines []textLine
	for _, g := range visible {
		if n := len(lines); n > 0 {
			cur := &lines[n-1]
			if math.Abs(cur.y-g.Y) <= math.Max(1, 0.3*g.size()) {
				cur.glyphs = append(cur.glyphs, g)
				cur.size = math.Max(cur.size, g.size())
				continue
			}
		}
		lines = append(lines, textLine{y: g.Y, size: g.size(), glyphs: []Glyph{g}})
	}
	for i := range lines {
		gl := lines[i].glyphs
		sort.SliceStable(gl, func(a, b int) bool { return gl[a].X < gl[b].X })
	}
	return lines
}

// render joins the glyphs of a line. Wide gaps become a two-space column
// separator unless columns is false.
func (l textLine) render(columns bool) string {
	var b strings.Builder
	for i, g := range l.glyphs {
		if i > 0 {
			prev := l.glyphs[i-1]
			gap := g.X - (prev.X + prev.width())
			switch {
			case columns && gap > columnGapFactor*l.size:
				b.WriteString("  ")
			case gap > wordGapFactor*l.size:
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	return strings.TrimSpace(b.String())
}

// LayoutText rebuilds page text from glyph positions. Column gaps are kept
// as runs of two spaces and large vertical gaps as blank lines, so that
// whitespace-aligned tables survive as text.
func LayoutText(glyphs []Glyph) string {
	lines := groupLines(glyphs)
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		if i > 0 {
			prev := lines[i-1]
			if prev.y-l.y > blankLineFactor*math.Max(prev.size, l.size) {
				out = append(out, "")
			}
		}
		out = append(out, l.render(true))
	}
	return strings.Join(out, "\n")
}

// cellText renders the glyphs of one table cell; lines are joined with "\n".
func cellText(glyphs []Glyph) string {
	lines := groupLines(glyphs)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.render(false))
	}
	return strings.Join(out, "\n")
}
