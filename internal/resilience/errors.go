package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Classifier decides whether a failed attempt should be retried.
type Classifier interface {
	Retryable(err error) bool
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error) bool

// Retryable implements Classifier.
func (f ClassifierFunc) Retryable(err error) bool {
	return f(err)
}

// DefaultClassifier retries errors reported by IsTransient.
var DefaultClassifier Classifier = ClassifierFunc(IsTransient)

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Retryable marks TransientError as always retryable.
func (e *TransientError) Retryable() bool {
	return true
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// retryabler is implemented by errors that know their own retry semantics,
// such as parse failures that must never be retried.
type retryabler interface {
	Retryable() bool
}

// transientSymbols are provider status names that indicate a retryable fault.
var transientSymbols = []string{
	"RESOURCE_EXHAUSTED",
	"UNAVAILABLE",
	"DEADLINE_EXCEEDED",
	"INTERNAL",
}

// transientPatterns are lowercase message fragments for rate limiting,
// unavailability, server faults, and timeouts.
var transientPatterns = []string{
	"429",
	"quota",
	"rate limit",
	"too many requests",
	"503",
	"unavailable",
	"500",
	"internal",
	"502",
	"504",
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"server closed idle connection",
}

// IsTransient returns true if the error (or any error in its chain) declares
// itself retryable, is a network timeout or connection reset, or its message
// matches a rate-limit, unavailability, server-fault, or timeout pattern.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var r retryabler
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	raw := err.Error()
	for _, s := range transientSymbols {
		if strings.Contains(raw, s) {
			return true
		}
	}

	msg := strings.ToLower(raw)
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
