package models

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindDocumentParse   Kind = "DocumentParseError"
	KindExtraction      Kind = "ExtractionWarning"
	KindUpstreamService Kind = "UpstreamServiceError"
	KindNormalization   Kind = "NormalizationError"
)

// Error is a classified pipeline error.
//
// Raw carries the language model response for NormalizationError so
// callers can diagnose malformed output.
type Error struct {
	Kind    Kind
	Message string
	Raw     string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k})
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// NewDocumentParseError reports a document that cannot be read at all.
func NewDocumentParseError(msg string, err error) *Error {
	return &Error{Kind: KindDocumentParse, Message: msg, Err: err}
}

// NewExtractionWarning reports a degraded page. It is logged, never returned
// to callers.
func NewExtractionWarning(msg string, err error) *Error {
	return &Error{Kind: KindExtraction, Message: msg, Err: err}
}

// NewUpstreamServiceError reports a failed language model call.
func NewUpstreamServiceError(msg string, err error) *Error {
	return &Error{Kind: KindUpstreamService, Message: msg, Err: err}
}

// NewNormalizationError reports unusable model output. raw is the verbatim
// response.
func NewNormalizationError(msg, raw string, err error) *Error {
	return &Error{Kind: KindNormalization, Message: msg, Raw: raw, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
