// Package pdftest builds small uncompressed PDFs in memory for tests.
//
// Text is set in Courier (600/1000 em advance per character) with explicit
// widths, so glyph positions are predictable.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// FontSize is the size used by Text and Grid.
const FontSize = 10.0

// CharWidth is the advance of one character at FontSize.
const CharWidth = 0.6 * FontSize

// Page collects content stream operators for one page.
type Page struct {
	ops bytes.Buffer
}

// Text draws s with its baseline starting at (x, y).
func (p *Page) Text(x, y float64, s string) *Page {
	fmt.Fprintf(&p.ops, "BT /F1 %g Tf 1 0 0 1 %g %g Tm (%s) Tj ET\n", FontSize, x, y, escape(s))
	return p
}

// Lines draws one text line per entry, top down from y, with the given leading.
func (p *Page) Lines(x, y, leading float64, lines ...string) *Page {
	for i, l := range lines {
		if l != "" {
			p.Text(x, y-float64(i)*leading, l)
		}
	}
	return p
}

// Raw appends content stream operators verbatim.
func (p *Page) Raw(ops string) *Page {
	p.ops.WriteString(ops + "\n")
	return p
}

// Rect strokes a rectangle.
func (p *Page) Rect(x, y, w, h float64) *Page {
	fmt.Fprintf(&p.ops, "%g %g %g %g re S\n", x, y, w, h)
	return p
}

// Grid draws a ruled table whose top-left corner is (x, top). Every cell
// is a stroked rectangle and its text is inset from the cell's lower left.
func (p *Page) Grid(x, top float64, colWidths []float64, rowHeight float64, rows [][]string) *Page {
	for i, row := range rows {
		y := top - float64(i+1)*rowHeight
		cx := x
		for j, w := range colWidths {
			p.Rect(cx, y, w, rowHeight)
			if j < len(row) && row[j] != "" {
				p.Text(cx+2, y+(rowHeight-FontSize)/2+1, row[j])
			}
			cx += w
		}
	}
	return p
}

// Line strokes a straight segment built from "m" and "l" operators.
func (p *Page) Line(x0, y0, x1, y1 float64) *Page {
	fmt.Fprintf(&p.ops, "%g %g m %g %g l S\n", x0, y0, x1, y1)
	return p
}

// LineGrid draws the same table as Grid, but the rules are single line
// segments across each row and column boundary, the way most statement
// generators draw them.
func (p *Page) LineGrid(x, top float64, colWidths []float64, rowHeight float64, rows [][]string) *Page {
	width := 0.0
	for _, w := range colWidths {
		width += w
	}
	bottom := top - float64(len(rows))*rowHeight
	for i := 0; i <= len(rows); i++ {
		y := top - float64(i)*rowHeight
		p.Line(x, y, x+width, y)
	}
	cx := x
	p.Line(cx, top, cx, bottom)
	for _, w := range colWidths {
		cx += w
		p.Line(cx, top, cx, bottom)
	}
	for i, row := range rows {
		y := top - float64(i+1)*rowHeight
		cx := x
		for j, w := range colWidths {
			if j < len(row) && row[j] != "" {
				p.Text(cx+2, y+(rowHeight-FontSize)/2+1, row[j])
			}
			cx += w
		}
	}
	return p
}

// Document is a multi-page PDF under construction.
type Document struct {
	pages []*Page
}

// NewPage appends an empty page.
func (d *Document) NewPage() *Page {
	p := &Page{}
	d.pages = append(d.pages, p)
	return p
}

// Bytes serializes the document with a valid cross-reference table.
func (d *Document) Bytes() []byte {
	var objs []string
	add := func(s string) int {
		objs = append(objs, s)
		return len(objs)
	}

	catalog := add("")
	pagesObj := add("")

	widths := strings.TrimSpace(strings.Repeat("600 ", 224))
	font := add(fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 255 /Widths [%s] >>", widths))

	var kids []string
	for _, p := range d.pages {
		stream := p.ops.String()
		content := add(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
		page := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", pagesObj, font, content))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objs[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objs[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, catalog, xref)
	return buf.Bytes()
}

// escape encodes s as a WinAnsi literal string body.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x80:
			b.WriteRune(r)
		case r < 0x100:
			fmt.Fprintf(&b, "\\%03o", r)
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}
