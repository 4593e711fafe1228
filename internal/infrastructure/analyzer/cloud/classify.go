package cloud

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/abalcerek/docuscan/internal/core/domain"
	"github.com/abalcerek/docuscan/internal/infrastructure/resilience"
)

// classifyTransportError maps a raw transport failure into the extraction
// taxonomy. Context cancellation is passed through untouched: an abandoned
// request is not a backend failure and must not feed the health tracker.
func classifyTransportError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewExtractionError(domain.ErrKindTimeout, operation+" deadline exceeded", err)
	}
	if resilience.IsCircuitOpen(err) {
		return domain.NewExtractionError(domain.ErrKindBackendUnavailable, "circuit open", err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(operation, statusErr)
	}

	var malformed *decodeError
	if errors.As(err, &malformed) {
		return domain.NewExtractionError(domain.ErrKindInvalidResponse, malformed.Error(), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.NewExtractionError(domain.ErrKindTimeout, operation+" network timeout", err)
		}
		return domain.NewExtractionError(domain.ErrKindNetwork, operation+" network error", err)
	}

	return domain.NewExtractionError(domain.ErrKindNetwork, err.Error(), err)
}

func classifyStatus(operation string, statusErr *HTTPStatusError) *domain.ExtractionError {
	switch {
	case statusErr.StatusCode == http.StatusUnauthorized:
		return domain.NewExtractionError(domain.ErrKindAuthenticationRequired, statusErr.Body, statusErr)
	case statusErr.StatusCode == http.StatusPaymentRequired || statusErr.StatusCode == http.StatusForbidden:
		return domain.NewExtractionError(domain.ErrKindSubscriptionRequired, statusErr.Body, statusErr)
	case statusErr.StatusCode == http.StatusNotFound:
		return domain.NewExtractionError(domain.ErrKindNotAvailable, statusErr.Body, statusErr)
	case statusErr.StatusCode == http.StatusRequestTimeout:
		return domain.NewExtractionError(domain.ErrKindTimeout, statusErr.Body, statusErr)
	case statusErr.StatusCode == http.StatusTooManyRequests:
		rateErr := domain.NewExtractionError(domain.ErrKindRateLimitExceeded, statusErr.Body, statusErr)
		rateErr.RateLimit = statusErr.RateLimit
		return rateErr
	case statusErr.StatusCode == http.StatusServiceUnavailable:
		return domain.NewExtractionError(domain.ErrKindBackendUnavailable, statusErr.Body, statusErr)
	default:
		serverErr := domain.NewExtractionError(domain.ErrKindServer, statusErr.Body, statusErr)
		serverErr.StatusCode = statusErr.StatusCode
		return serverErr
	}
}

// classifyForRetry feeds the resilience executor.
func classifyForRetry(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if extractionErr, ok := domain.AsExtractionError(err); ok {
		return resilience.ErrorClassification{
			Retryable:     extractionErr.IsRetryable(),
			RecordFailure: extractionErr.IsRetryable() || extractionErr.Kind == domain.ErrKindServer,
		}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
