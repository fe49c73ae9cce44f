package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// run lays s out in 6-unit wide glyphs, one per character, like a
// monospaced font at size 10.
func run(x, y float64, s string) []Glyph {
	var gs []Glyph
	for i, r := range s {
		gs = append(gs, Glyph{X: x + float64(i)*6, Y: y, W: 6, Size: 10, S: string(r)})
	}
	return gs
}

func TestLayoutText(t *testing.T) {
	tests := []struct {
		name   string
		glyphs []Glyph
		want   string
	}{
		{
			name:   "single word gap stays one space",
			glyphs: run(0, 100, "PAGO SPEI"),
			want:   "PAGO SPEI",
		},
		{
			name:   "column gap becomes two spaces",
			glyphs: append(run(0, 100, "01/01/2024"), run(200, 100, "Pago")...),
			want:   "01/01/2024  Pago",
		},
		{
			name:   "lines ordered top to bottom",
			glyphs: append(run(0, 80, "segunda"), run(0, 92, "primera")...),
			want:   "primera\nsegunda",
		},
		{
			name:   "large vertical gap leaves blank line",
			glyphs: append(run(0, 100, "arriba"), run(0, 40, "abajo")...),
			want:   "arriba\n\nabajo",
		},
		{
			name:   "empty page",
			glyphs: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LayoutText(tt.glyphs))
		})
	}
}

func TestCellTextCollapsesColumns(t *testing.T) {
	glyphs := append(run(0, 100, "PAGO"), run(100, 100, "NOMINA")...)
	assert.Equal(t, "PAGO NOMINA", cellText(glyphs))
}

func TestTextQuality(t *testing.T) {
	assert.True(t, isReadableText("Estado de cuenta  Depósito  1,000.00"))
	assert.False(t, isReadableText("ⱥⱦⱧⱨⱩⱪⱫⱬ"))
	assert.Equal(t, 0.0, textQuality(""))
}
