package grounding

import (
	"fmt"
	"unicode/utf8"
)

// maxExcerpt bounds the raw payload carried by a ParseError.
const maxExcerpt = 500

// ParseError reports a grounded response whose text held no recoverable
// JSON payload. Parsing is deterministic, so it is never retried.
type ParseError struct {
	Reason  string
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grounding: parse response: %s: %v (payload: %q)", e.Reason, e.Err, e.Excerpt)
	}
	return fmt.Sprintf("grounding: parse response: %s (payload: %q)", e.Reason, e.Excerpt)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Retryable reports false so backoff executors stop immediately.
func (e *ParseError) Retryable() bool { return false }

func newParseError(reason, raw string, err error) *ParseError {
	return &ParseError{Reason: reason, Excerpt: excerpt(raw), Err: err}
}

func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= maxExcerpt {
		return s
	}
	return string([]rune(s)[:maxExcerpt]) + "..."
}
