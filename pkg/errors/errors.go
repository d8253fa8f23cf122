package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures the monitor can encounter
type ErrorType string

const (
	// ErrorTypeQuotaDenied is not a real failure: the protection gate refused
	// the check before any network call was made.
	ErrorTypeQuotaDenied ErrorType = "quota_denied"

	// ErrorTypeSuspiciousUpstream is an upstream error whose message matches
	// the suspicious-keyword heuristic (checkpoint, challenge, rate limit...).
	ErrorTypeSuspiciousUpstream ErrorType = "suspicious_upstream"

	// ErrorTypeCriticalUpstream is a ban-like upstream error (blocked,
	// suspended, captcha...) that can escalate to Emergency Mode.
	ErrorTypeCriticalUpstream ErrorType = "critical_upstream"

	// ErrorTypeTransient is an ordinary per-account failure; sequencing
	// continues past it.
	ErrorTypeTransient ErrorType = "transient"

	// ErrorTypePersistence is a state-file read/write failure; defaults are
	// substituted and the process never crashes over it.
	ErrorTypePersistence ErrorType = "persistence"

	ErrorTypeNotFound ErrorType = "not_found"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a classified monitor error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a classified error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Newf creates a classified error with a formatted message
func Newf(errorType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

// TypeOf extracts the classified type from an error chain, returning
// ErrorTypeUnknown for unclassified errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// AbortsBatch reports whether an error type should stop a whole check batch.
// Per-account failures never abort the batch; only a gate denial does.
func AbortsBatch(errorType ErrorType) bool {
	return errorType == ErrorTypeQuotaDenied
}

// HTTPStatus maps an error type to the user-visible HTTP status code
func HTTPStatus(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeQuotaDenied:
		return 429
	case ErrorTypeNotFound:
		return 404
	default:
		return 500
	}
}
