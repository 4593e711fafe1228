package ports

import (
	"context"
	"io"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

// DocumentRouter is the inbound contract for hybrid analysis routing. A nil
// decision asks the router to derive one in legacy/standalone mode. The only
// error a caller sees for an unreachable backend is nil: the router degrades
// to local instead. Authentication failures are the single exception.
type DocumentRouter interface {
	Route(ctx context.Context, req *domain.AnalysisRequest, decision *domain.RoutingDecision) (*domain.AnalysisResult, error)
	Stats() domain.RoutingStatsSnapshot
	AnalysisMode() domain.AnalysisMode
	BackendHealth() domain.BackendHealthStatus
}

// DocumentIngestor is the inbound contract for scan submission.
type DocumentIngestor interface {
	Submit(ctx context.Context, sub domain.Submission, payload io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous analysis.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
