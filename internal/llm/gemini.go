package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-flash"
)

// Gemini calls the Generative Language generateContent endpoint with a
// JSON response MIME type.
type Gemini struct {
	hc     *http.Client
	url    string
	apiKey string
}

// NewGemini returns a client for the Gemini generateContent API.
func NewGemini(opts Options) *Gemini {
	base := opts.BaseURL
	if base == "" {
		base = defaultGeminiBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		hc:     &http.Client{Timeout: opts.Timeout},
		url:    strings.TrimRight(base, "/") + "/v1beta/models/" + url.PathEscape(model) + ":generateContent",
		apiKey: opts.APIKey,
	}
}

type gmPart struct {
	Text string `json:"text"`
}

type gmContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []gmPart `json:"parts"`
}

type gmGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type gmRequest struct {
	Contents         []gmContent        `json:"contents"`
	GenerationConfig gmGenerationConfig `json:"generationConfig"`
}

type gmResponse struct {
	Candidates []struct {
		Content gmContent `json:"content"`
	} `json:"candidates"`
}

// Complete sends prompt as a single user turn and returns the text of
// the first candidate.
func (c *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(gmRequest{
		Contents:         []gmContent{{Role: "user", Parts: []gmPart{{Text: prompt}}}},
		GenerationConfig: gmGenerationConfig{ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return "", fmt.Errorf("encode: %v: %w", err, ErrInvalidRequest)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %v: %w", err, ErrInvalidRequest)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus("gemini", resp); err != nil {
		return "", err
	}

	var gr gmResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("gemini decode: %v: %w", err, ErrResponseInvalid)
	}
	if len(gr.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates: %w", ErrResponseInvalid)
	}
	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini: empty completion: %w", ErrResponseInvalid)
	}
	return b.String(), nil
}
