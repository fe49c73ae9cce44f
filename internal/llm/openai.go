package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAI calls the chat completions endpoint in JSON-object mode.
type OpenAI struct {
	hc     *http.Client
	url    string
	apiKey string
	model  string
}

// NewOpenAI returns a client for an OpenAI-compatible chat completions API.
func NewOpenAI(opts Options) *OpenAI {
	base := opts.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		hc:     &http.Client{Timeout: opts.Timeout},
		url:    strings.TrimRight(base, "/") + "/chat/completions",
		apiKey: opts.APIKey,
		model:  model,
	}
}

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaResponseFormat struct {
	Type string `json:"type"`
}

type oaRequest struct {
	Model          string            `json:"model"`
	Messages       []oaMessage       `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat *oaResponseFormat `json:"response_format,omitempty"`
}

type oaResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message in JSON mode and returns
// the first choice.
func (c *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(oaRequest{
		Model:          c.model,
		Messages:       []oaMessage{{Role: "user", Content: prompt}},
		ResponseFormat: &oaResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encode: %v: %w", err, ErrInvalidRequest)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %v: %w", err, ErrInvalidRequest)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus("openai", resp); err != nil {
		return "", err
	}

	var or oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", fmt.Errorf("openai decode: %v: %w", err, ErrResponseInvalid)
	}
	if len(or.Choices) == 0 || or.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: empty completion: %w", ErrResponseInvalid)
	}
	return or.Choices[0].Message.Content, nil
}

// checkStatus classifies non-2xx responses: 429 is rate limiting, 408 and
// 5xx are temporary upstream failures, other 4xx are invalid requests.
func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", provider, ErrRateLimited)
	}
	slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	se := &StatusError{Provider: provider, Status: resp.StatusCode, Body: strings.TrimSpace(string(slurp))}
	if se.Temporary() {
		return se
	}
	return fmt.Errorf("%w: %w", se, ErrInvalidRequest)
}
