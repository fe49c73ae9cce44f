package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

var errNullPage = errors.New("page object is missing")

// Extractor turns PDF bytes into per-page text and ruled-grid table candidates.
// It holds no per-document state, so one Extractor can serve concurrent requests.
type Extractor struct {
	Grid   GridDetector
	Logger zerolog.Logger
}

// New returns an Extractor with the fixed grid configuration.
func New(logger zerolog.Logger) *Extractor {
	return &Extractor{
		Grid:   DefaultGridDetector(),
		Logger: logger,
	}
}

// Extract reads every page in document order.
//
// An unparsable document fails with a DocumentParseError and no partial
// result. A page that cannot be decoded contributes empty text and no
// tables; the failure is logged as an ExtractionWarning.
func (e *Extractor) Extract(ctx context.Context, data []byte) ([]models.Page, error) {
	r, err := openReader(data)
	if err != nil {
		return nil, models.NewDocumentParseError("cannot read PDF", err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, models.NewDocumentParseError("PDF has no pages", nil)
	}

	pages := make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, warn := e.extractPage(r, i)
		if warn != nil {
			e.Logger.Warn().Err(warn).Int("page", i).Msg("page extraction degraded")
		}
		if page.Text != "" && !isReadableText(page.Text) {
			e.Logger.Warn().
				Err(models.NewExtractionWarning("page text looks undecodable", nil)).
				Int("page", i).
				Float64("quality", textQuality(page.Text)).
				Msg("low quality text layer")
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// openReader parses the PDF from memory. The library panics on some
// malformed inputs, so panics are turned into errors.
func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("PDF library crashed: %v", rec)
		}
	}()
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// extractPage tries the content stream first (layout text and grid tables),
// then the library's plain-text mode. The returned error is a warning: the
// page is always usable, possibly empty.
func (e *Extractor) extractPage(r *pdf.Reader, num int) (models.Page, error) {
	page := models.Page{Number: num}

	text, tables, err := e.extractByContent(r, num)
	if err == nil {
		page.Text = text
		page.Tables = tables
		return page, nil
	}

	plain, plainErr := extractByPlainText(r, num)
	if plainErr != nil {
		return page, models.NewExtractionWarning(
			fmt.Sprintf("page %d could not be decoded", num), errors.Join(err, plainErr))
	}
	page.Text = plain
	return page, models.NewExtractionWarning(
		fmt.Sprintf("page %d read without layout, no tables detected", num), err)
}

func (e *Extractor) extractByContent(r *pdf.Reader, num int) (text string, tables []models.Table, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("content stream: %v", rec)
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return "", nil, errNullPage
	}
	glyphs := glyphsFromText(p.Content().Text)
	rects := pathRects(p.V.Key("Contents"))

	return LayoutText(glyphs), e.Grid.Detect(rects, glyphs), nil
}

func extractByPlainText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("plain text: %v", rec)
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return "", errNullPage
	}
	fonts := make(map[string]*pdf.Font)
	for _, name := range p.Fonts() {
		f := p.Font(name)
		fonts[name] = &f
	}
	text, err = p.GetPlainText(fonts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func glyphsFromText(texts []pdf.Text) []Glyph {
	glyphs := make([]Glyph, 0, len(texts))
	for _, t := range texts {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
	}
	return glyphs
}
