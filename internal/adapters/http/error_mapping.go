package httpadapter

import (
	"net/http"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	if extractionErr, ok := domain.AsExtractionError(err); ok {
		return mapExtractionKind(extractionErr.Kind)
	}

	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// mapExtractionKind surfaces backend analysis failures on the sync endpoint.
// Most kinds never reach a client because the router degrades to local
// analysis first; auth and rate-limit failures are the ones that do.
func mapExtractionKind(kind domain.ExtractionErrorKind) int {
	switch kind {
	case domain.ErrKindAuthenticationRequired:
		return http.StatusUnauthorized
	case domain.ErrKindSubscriptionRequired:
		return http.StatusPaymentRequired
	case domain.ErrKindRateLimitExceeded:
		return http.StatusTooManyRequests
	case domain.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case domain.ErrKindNetwork, domain.ErrKindBackendUnavailable, domain.ErrKindNotAvailable:
		return http.StatusServiceUnavailable
	case domain.ErrKindAnalysisIncomplete, domain.ErrKindInvalidResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
