// Package pipeline wires the extraction, reconstruction, aggregation and
// normalization stages into the two request variants.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-normalizer/internal/aggregate"
	"github.com/insightdelivered/statement-normalizer/internal/extractor"
	"github.com/insightdelivered/statement-normalizer/internal/metrics"
	"github.com/insightdelivered/statement-normalizer/internal/models"
	"github.com/insightdelivered/statement-normalizer/internal/normalizer"
	"github.com/insightdelivered/statement-normalizer/internal/reconstruct"
)

// ErrNoNormalizer is returned by Process when no language model is configured.
var ErrNoNormalizer = errors.New("pipeline has no normalizer configured")

// Service is shared by all requests; every stage it holds is read-only
// after construction.
type Service struct {
	Extractor     *extractor.Extractor
	Reconstructor *reconstruct.Reconstructor
	Normalizer    *normalizer.Normalizer
	Logger        zerolog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// New wires the stages into a Service. norm may be nil for extraction only.
func New(ext *extractor.Extractor, rec *reconstruct.Reconstructor, norm *normalizer.Normalizer, logger zerolog.Logger) *Service {
	return &Service{Extractor: ext, Reconstructor: rec, Normalizer: norm, Logger: logger}
}

// Extract runs every stage except normalization.
func (s *Service) Extract(ctx context.Context, data []byte) (res *models.ExtractResult, err error) {
	defer func() { s.Metrics.ObserveRequest("extract", err) }()

	doc, err := s.document(ctx, data)
	if err != nil {
		return nil, err
	}
	return &models.ExtractResult{
		Success:   true,
		Text:      doc.Text,
		Tables:    doc.Tables,
		PageCount: doc.PageCount,
	}, nil
}

// Process runs the full pipeline and returns the normalized statement.
func (s *Service) Process(ctx context.Context, data []byte) (rec *models.StatementRecord, err error) {
	defer func() { s.Metrics.ObserveRequest("process", err) }()

	if s.Normalizer == nil {
		return nil, ErrNoNormalizer
	}
	doc, err := s.document(ctx, data)
	if err != nil {
		return nil, err
	}

	log := s.log(ctx)
	start := time.Now()
	rec, err = s.Normalizer.Normalize(ctx, doc)
	s.Metrics.ObserveStage("normalize", time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("kind", string(models.KindOf(err))).Msg("normalization failed")
		return nil, err
	}
	log.Info().
		Int("movements", len(rec.Movements)).
		Dur("took", time.Since(start)).
		Msg("statement normalized")
	return rec, nil
}

func (s *Service) document(ctx context.Context, data []byte) (models.Document, error) {
	log := s.log(ctx)

	start := time.Now()
	pages, err := s.Extractor.Extract(ctx, data)
	s.Metrics.ObserveStage("extract", time.Since(start))
	if err != nil {
		return models.Document{}, err
	}
	s.Metrics.ObservePages(len(pages))
	candidates := 0
	for _, p := range pages {
		candidates += len(p.Tables)
	}
	log.Info().
		Int("pages", len(pages)).
		Int("grid_candidates", candidates).
		Dur("took", time.Since(start)).
		Msg("pages extracted")

	start = time.Now()
	res := s.Reconstructor.Reconstruct(pages)
	s.Metrics.ObserveStage("reconstruct", time.Since(start))
	s.Metrics.ObserveTables(len(res.Tables), res.UsedFallback)
	log.Info().
		Int("tables", len(res.Tables)).
		Bool("fallback", res.UsedFallback).
		Msg("tables reconstructed")

	return aggregate.Aggregate(pages, res.Tables), nil
}

// log prefers the request logger carried in ctx.
func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}
