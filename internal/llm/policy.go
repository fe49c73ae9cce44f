package llm

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// Limited caps the call rate of the wrapped Completer. One Limited is
// shared by all requests of the process.
type Limited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewLimited allows perMinute calls per minute with a burst of one.
func NewLimited(next Completer, perMinute int) *Limited {
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Complete waits for a token, then calls the wrapped Completer.
func (l *Limited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Complete(ctx, prompt)
}

// Retrying repeats calls that fail with a Retryable error, with exponential
// backoff. Any other error is returned at once.
type Retrying struct {
	next       Completer
	maxRetries uint64
	base       time.Duration
}

// NewRetrying wraps next. base defaults to 500ms.
func NewRetrying(next Completer, maxRetries int, base time.Duration) *Retrying {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &Retrying{next: next, maxRetries: uint64(maxRetries), base: base}
}

// Complete calls the wrapped Completer until it succeeds, fails with a
// non-retryable error, or runs out of retries.
func (r *Retrying) Complete(ctx context.Context, prompt string) (string, error) {
	backoff := retry.WithMaxRetries(r.maxRetries, retry.WithJitterPercent(10, retry.NewExponential(r.base)))

	var out string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		text, err := r.next.Complete(ctx, prompt)
		if err != nil {
			if Retryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		out = text
		return nil
	})
	return out, err
}
