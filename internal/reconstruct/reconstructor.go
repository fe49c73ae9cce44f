package reconstruct

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

// Scope controls where the fallback source is allowed to run.
type Scope string

const (
	// ScopeDocument runs the fallback on every page, only when no page
	// produced a primary table.
	ScopeDocument Scope = "document"
	// ScopePage runs the fallback on each page without primary tables.
	ScopePage Scope = "page"
)

// ParseScope validates a configured scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeDocument, ScopePage:
		return Scope(s), nil
	case "":
		return ScopeDocument, nil
	default:
		return "", fmt.Errorf("unknown fallback scope %q: use %q or %q", s, ScopeDocument, ScopePage)
	}
}

// Result is the outcome of reconstruction. PerPage is aligned with the
// input pages.
type Result struct {
	Tables       []models.Table
	PerPage      [][]models.Table
	UsedFallback bool
}

// Reconstructor applies the fallback policy: try Primary, and use Fallback
// where Primary found nothing.
type Reconstructor struct {
	Primary  Source
	Fallback Source
	Scope    Scope
	Logger   zerolog.Logger
}

// New returns a grid-then-heuristic reconstructor.
func New(scope Scope, logger zerolog.Logger) *Reconstructor {
	return &Reconstructor{
		Primary:  GridSource{MinRows: MinGridRows},
		Fallback: HeuristicSource{MinRows: MinHeuristicRows},
		Scope:    scope,
		Logger:   logger,
	}
}

// Reconstruct never fails: a document without tables yields an empty result.
func (r *Reconstructor) Reconstruct(pages []models.Page) Result {
	res := Result{PerPage: make([][]models.Table, len(pages))}

	primary := 0
	for i, p := range pages {
		res.PerPage[i] = r.Primary.Tables(p)
		primary += len(res.PerPage[i])
	}

	for i, p := range pages {
		if !r.needsFallback(primary, len(res.PerPage[i])) {
			continue
		}
		if tables := r.Fallback.Tables(p); len(tables) > 0 {
			res.PerPage[i] = tables
			res.UsedFallback = true
		}
	}

	for _, tables := range res.PerPage {
		res.Tables = append(res.Tables, tables...)
	}

	fallback := "none"
	if r.Fallback != nil {
		fallback = r.Fallback.Name()
	}
	r.Logger.Debug().
		Str("primary", r.Primary.Name()).
		Str("fallback", fallback).
		Str("scope", string(r.Scope)).
		Int("primary_tables", primary).
		Int("tables", len(res.Tables)).
		Bool("used_fallback", res.UsedFallback).
		Msg("tables reconstructed")
	return res
}

func (r *Reconstructor) needsFallback(documentPrimary, pagePrimary int) bool {
	if r.Fallback == nil {
		return false
	}
	if r.Scope == ScopePage {
		return pagePrimary == 0
	}
	return documentPrimary == 0
}
