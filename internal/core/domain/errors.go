package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ExtractionErrorKind is the closed taxonomy of cloud-analysis failures.
type ExtractionErrorKind string

const (
	ErrKindAuthenticationRequired ExtractionErrorKind = "authentication_required"
	ErrKindRateLimitExceeded      ExtractionErrorKind = "rate_limit_exceeded"
	ErrKindTimeout                ExtractionErrorKind = "timeout"
	ErrKindNetwork                ExtractionErrorKind = "network_error"
	ErrKindServer                 ExtractionErrorKind = "server_error"
	ErrKindBackendUnavailable     ExtractionErrorKind = "backend_unavailable"
	ErrKindSubscriptionRequired   ExtractionErrorKind = "subscription_required"
	ErrKindNotAvailable           ExtractionErrorKind = "not_available"
	ErrKindInvalidResponse        ExtractionErrorKind = "invalid_response"
	ErrKindAnalysisIncomplete     ExtractionErrorKind = "analysis_incomplete"
	ErrKindImageUploadFailed      ExtractionErrorKind = "image_upload_failed"
)

// ExtractionError is a cloud-analysis failure classified into the taxonomy
// above. Retryability and rate-limit semantics are pure functions of the
// kind (plus status code for server errors); carrying no hidden state keeps
// classification deterministic.
type ExtractionError struct {
	Kind       ExtractionErrorKind
	StatusCode int
	Message    string
	RateLimit  *RateLimitInfo
	cause      error
}

// NewExtractionError builds a classified error wrapping the transport cause.
func NewExtractionError(kind ExtractionErrorKind, message string, cause error) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: message, cause: cause}
}

func (e *ExtractionError) Error() string {
	if e == nil {
		return "extraction error"
	}
	if e.Message == "" {
		return fmt.Sprintf("extraction error: %s", e.Kind)
	}
	return fmt.Sprintf("extraction error: %s: %s", e.Kind, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsRetryable reports whether a fresh attempt against the same backend may
// succeed. Rate-limit and auth failures are never retryable here; they have
// dedicated fallback policies.
func (e *ExtractionError) IsRetryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case ErrKindTimeout, ErrKindNetwork, ErrKindBackendUnavailable:
		return true
	case ErrKindServer:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// IsRateLimit reports whether the error represents an exhausted quota.
func (e *ExtractionError) IsRateLimit() bool {
	return e != nil && e.Kind == ErrKindRateLimitExceeded
}

// AsExtractionError unwraps err into the taxonomy, if it belongs to it.
func AsExtractionError(err error) (*ExtractionError, bool) {
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr, true
	}
	return nil, false
}
