package reconstruct

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

var (
	// DD/MM/YYYY, DD-MM-YY and similar.
	datePattern = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
	// 1,234.56, 1234.56 or -100.00: exactly two decimals.
	moneyPattern = regexp.MustCompile(`(?:^|[^\d.,])-?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2}(?:$|[^\d])`)
	// Column separator: a tab or two or more whitespace characters.
	cellSeparator = regexp.MustCompile(`\t|\s{2,}`)
)

// HeuristicSource rebuilds tables from page text.
type HeuristicSource struct {
	MinRows int
}

// Name identifies the source in logs.
func (HeuristicSource) Name() string { return "heuristic" }

// Tables segments the page text into groups of transaction-like lines and
// keeps groups of at least MinRows rows.
func (s HeuristicSource) Tables(page models.Page) []models.Table {
	minRows := s.MinRows
	if minRows <= 0 {
		minRows = MinHeuristicRows
	}
	return Segment(page.Text, minRows)
}

// IsCandidateRow reports whether a line looks transactional: it holds a
// date-shaped or a money-shaped token.
func IsCandidateRow(line string) bool {
	return datePattern.MatchString(line) || moneyPattern.MatchString(line)
}

// SplitCells splits a line on tabs and runs of two or more whitespace
// characters, dropping empty cells.
func SplitCells(line string) []string {
	var cells []string
	for _, part := range cellSeparator.Split(line, -1) {
		if p := strings.TrimSpace(part); p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

// Segment groups candidate rows between blank lines. A group becomes a
// table once it holds at least minRows rows of two or more cells. Lines
// that are neither blank nor candidates are skipped without closing the
// group.
func Segment(text string, minRows int) []models.Table {
	var (
		tables []models.Table
		group  models.Table
	)
	flush := func() {
		if len(group) >= minRows {
			tables = append(tables, group)
		}
		group = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if !IsCandidateRow(line) {
			continue
		}
		if cells := SplitCells(line); len(cells) >= 2 {
			group = append(group, cells)
		}
	}
	flush()
	return tables
}
