package models

import "strings"

// Table is an ordered sequence of rows, each an ordered sequence of cells.
// Absent cells are represented as empty strings.
type Table [][]string

// NonEmptyRows counts rows that have at least one non-blank cell.
func (t Table) NonEmptyRows() int {
	n := 0
	for _, row := range t {
		if !RowIsBlank(row) {
			n++
		}
	}
	return n
}

// RowIsBlank reports whether every cell in row is empty after trimming.
func RowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Page is the extraction output for a single PDF page.
type Page struct {
	Number int     // 1-based
	Text   string  // may be empty for image-only pages
	Tables []Table // ruled-grid candidates, in detection order
}

// Document is the aggregated, request-scoped view of all pages.
type Document struct {
	Text      string
	Tables    []Table
	PageCount int
}

// ExtractResult is the response of the extraction-only operation.
type ExtractResult struct {
	Success   bool    `json:"success"`
	Text      string  `json:"text"`
	Tables    []Table `json:"tables"`
	PageCount int     `json:"page_count"`
}
