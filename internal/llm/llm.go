// Package llm talks to hosted language models. A Completer sends one text
// prompt and returns the raw completion text, unmodified.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Completer performs a single synchronous completion. Implementations must
// honour ctx cancellation.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

var (
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrResponseInvalid = errors.New("response invalid")
	ErrMissingAPIKey   = errors.New("missing api key")
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s upstream %d: %s", e.Provider, e.Status, e.Body)
}

// Temporary reports whether the status is worth retrying (timeouts and 5xx).
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusRequestTimeout || e.Status/100 == 5
}

// Retryable reports whether a failed call may succeed if repeated. Caller
// cancellation and invalid requests are never retryable.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Options configures a provider client and its decorators.
type Options struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
	RetryBase         time.Duration
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultTimeout = 60 * time.Second
)

// New builds the configured provider client, wrapped with the rate limiter
// and retry policy when enabled.
func New(opts Options) (Completer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", opts.Provider, ErrMissingAPIKey)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	var c Completer
	switch opts.Provider {
	case ProviderOpenAI, "":
		c = NewOpenAI(opts)
	case ProviderGemini:
		c = NewGemini(opts)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}

	if opts.RequestsPerMinute > 0 {
		c = NewLimited(c, opts.RequestsPerMinute)
	}
	if opts.MaxRetries > 0 {
		c = NewRetrying(c, opts.MaxRetries, opts.RetryBase)
	}
	return c, nil
}
