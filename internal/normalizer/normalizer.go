// Package normalizer turns an aggregated document into a StatementRecord
// with a single language model call.
package normalizer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-normalizer/internal/llm"
	"github.com/insightdelivered/statement-normalizer/internal/models"
)

// Normalizer holds process-wide, read-only configuration.
type Normalizer struct {
	llm    llm.Completer
	budget Budget
	logger zerolog.Logger
}

// New returns a Normalizer that sends prompts built within budget to
// completer. A nil completer is allowed for extraction-only use.
func New(completer llm.Completer, budget Budget, logger zerolog.Logger) *Normalizer {
	return &Normalizer{llm: completer, budget: budget, logger: logger}
}

// Normalize makes exactly one outbound call (retries, if configured, live
// in the llm transport and only cover upstream failures). Model failures
// are UpstreamServiceError; unusable output is NormalizationError.
func (n *Normalizer) Normalize(ctx context.Context, doc models.Document) (*models.StatementRecord, error) {
	prompt := BuildPrompt(doc, n.budget)

	start := time.Now()
	raw, err := n.llm.Complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, models.NewUpstreamServiceError("language model call failed", err)
	}
	n.logger.Debug().
		Int("prompt_chars", len(prompt)).
		Int("response_chars", len(raw)).
		Dur("took", time.Since(start)).
		Msg("completion received")

	rec, err := Parse(raw)
	if err != nil {
		n.logger.Warn().Err(err).Str("raw", Truncate(raw, 500)).Msg("unusable model response")
		return nil, err
	}
	return rec, nil
}
