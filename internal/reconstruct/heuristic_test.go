package reconstruct

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

func TestIsCandidateRow(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"01/01/2024  PAGO", true},
		{"1-2-24 algo", true},
		{"COMISION  1,234.56", true},
		{"RETIRO  -100.00", true},
		{"TOTAL  250.00", true},
		{"Estado de cuenta", false},
		{"Folio 123456", false},
		{"Tasa 1.5", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCandidateRow(tt.line))
		})
	}
}

func TestSplitCells(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"one token", "01/01/2024", []string{"01/01/2024"}},
		{"single spaces do not split", "01/01/2024 PAGO", []string{"01/01/2024 PAGO"}},
		{"two tokens", "01/01/2024  -100.00", []string{"01/01/2024", "-100.00"}},
		{"five tokens", "01/01/2024  PAGO SPEI  REF 123  -100.00  900.00", []string{"01/01/2024", "PAGO SPEI", "REF 123", "-100.00", "900.00"}},
		{"tab splits", "01/01/2024\tPAGO", []string{"01/01/2024", "PAGO"}},
		{"leading and trailing runs", "   01/01/2024   PAGO   ", []string{"01/01/2024", "PAGO"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCells(tt.line))
		})
	}
}

func TestSegment_RowDiscardedBelowTwoCells(t *testing.T) {
	text := "01/01/2024\n" +
		"02/01/2024  200.00\n" +
		"03/01/2024  A  B  C  300.00\n" +
		"04/01/2024  400.00\n"

	tables := Segment(text, MinHeuristicRows)

	require.Len(t, tables, 1)
	assert.Equal(t, models.Table{
		{"02/01/2024", "200.00"},
		{"03/01/2024", "A", "B", "C", "300.00"},
		{"04/01/2024", "400.00"},
	}, tables[0])
}

func TestSegment_Groups(t *testing.T) {
	text := `ESTADO DE CUENTA
Periodo  01/01/2024 al 31/01/2024

01/01/2024  PAGO SPEI  -100.00  900.00
02/01/2024  DEPOSITO  200.00  1,100.00
Detalle sin montos
03/01/2024  COMISION  -10.00  1,090.00

RESUMEN  1,090.00
SALDO  1,090.00

05/01/2024  X  1.00
06/01/2024  Y  2.00
07/01/2024  Z  3.00`

	tables := Segment(text, MinHeuristicRows)

	require.Len(t, tables, 2)
	assert.Len(t, tables[0], 3, "non-candidate line does not break the group")
	assert.Equal(t, "COMISION", tables[0][2][1])
	assert.Equal(t, models.Table{{"05/01/2024", "X", "1.00"}, {"06/01/2024", "Y", "2.00"}, {"07/01/2024", "Z", "3.00"}}, tables[1])
}

func TestSegment_ShortGroupsAreNoise(t *testing.T) {
	text := "01/01/2024  A  1.00\n02/01/2024  B  2.00\n\n03/01/2024  C  3.00"
	assert.Empty(t, Segment(text, MinHeuristicRows))
	assert.Empty(t, Segment("", MinHeuristicRows))
}
