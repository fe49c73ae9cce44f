// Package aggregate merges per-page extraction output into one document.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

// PageMarker returns the boundary line placed before the text of page n.
func PageMarker(n int) string {
	return fmt.Sprintf("--- Página %d ---", n)
}

// Aggregate joins page texts in page order, each under its page marker and
// separated by a blank line, and keeps tables in the order given.
func Aggregate(pages []models.Page, tables []models.Table) models.Document {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, PageMarker(p.Number)+"\n"+p.Text)
	}
	if tables == nil {
		tables = []models.Table{}
	}
	return models.Document{
		Text:      strings.Join(parts, "\n\n"),
		Tables:    tables,
		PageCount: len(pages),
	}
}
