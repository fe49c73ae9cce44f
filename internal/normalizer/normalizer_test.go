package normalizer

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-normalizer/internal/llm"
	"github.com/insightdelivered/statement-normalizer/internal/models"
)

func TestNormalize(t *testing.T) {
	var prompts []string
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "```json\n" + validResponse + "\n```", nil
	})

	n := New(completer, DefaultBudget(), zerolog.Nop())
	rec, err := n.Normalize(context.Background(), models.Document{Text: "estado", PageCount: 1})

	require.NoError(t, err)
	assert.Equal(t, "X", rec.Bank)
	require.Len(t, prompts, 1, "exactly one outbound call")
	assert.Contains(t, prompts[0], "estado")
}

func TestNormalize_UpstreamFailure(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", llm.ErrRateLimited
	})

	_, err := New(completer, DefaultBudget(), zerolog.Nop()).Normalize(context.Background(), models.Document{})

	assert.Equal(t, models.KindUpstreamService, models.KindOf(err))
	assert.ErrorIs(t, err, llm.ErrRateLimited)
}

func TestNormalize_MalformedOutputIsNotRetried(t *testing.T) {
	calls := 0
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "{not json", nil
	})

	rec, err := New(completer, DefaultBudget(), zerolog.Nop()).Normalize(context.Background(), models.Document{})

	assert.Nil(t, rec)
	assert.Equal(t, models.KindNormalization, models.KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestNormalize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		cancel()
		return "", ctx.Err()
	})

	_, err := New(completer, DefaultBudget(), zerolog.Nop()).Normalize(ctx, models.Document{})

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, models.KindOf(err))
}
