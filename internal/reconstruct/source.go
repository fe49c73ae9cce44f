// Package reconstruct decides which tables of a document are usable.
//
// Ruled-grid candidates from the extractor are preferred. When they are
// missing, tables are rebuilt from whitespace-aligned text lines that look
// like transactions.
package reconstruct

import (
	"github.com/insightdelivered/statement-normalizer/internal/models"
)

const (
	// MinGridRows is the minimum number of non-empty rows of a ruled table
	// (header plus one row).
	MinGridRows = 2
	// MinHeuristicRows is higher because text-segmented tables are noisier.
	MinHeuristicRows = 3
)

// Source produces the tables of one page.
type Source interface {
	Name() string
	Tables(page models.Page) []models.Table
}

// GridSource accepts the extractor's ruled-grid candidates.
type GridSource struct {
	MinRows int
}

// Name identifies the source in logs.
func (GridSource) Name() string { return "grid" }

// Tables drops blank rows and keeps candidates with at least MinRows rows.
// Cell text is left exactly as the extractor produced it.
func (s GridSource) Tables(page models.Page) []models.Table {
	minRows := s.MinRows
	if minRows <= 0 {
		minRows = MinGridRows
	}
	var out []models.Table
	for _, candidate := range page.Tables {
		if t := filterRows(candidate); len(t) >= minRows {
			out = append(out, t)
		}
	}
	return out
}

// filterRows drops blank rows. Surviving rows keep their cells verbatim.
func filterRows(t models.Table) models.Table {
	var out models.Table
	for _, row := range t {
		if !models.RowIsBlank(row) {
			out = append(out, row)
		}
	}
	return out
}
