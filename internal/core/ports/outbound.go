package ports

import (
	"context"
	"io"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

// LocalAnalyzer extracts fields on-device style: fast, side-effect-free, no
// network. Its failures propagate; there is no fallback below local.
type LocalAnalyzer interface {
	Analyze(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// CloudGateway is the remote AI analysis transport. AnalyzeDocument returns
// either a result or an error classified into the domain taxonomy.
type CloudGateway interface {
	IsAvailable(ctx context.Context) bool
	AnalyzeDocument(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// ConnectivityProbe reports device/network reachability.
type ConnectivityProbe interface {
	IsOnline(ctx context.Context) bool
}

// AccessPolicy computes routing decisions with visibility into auth and
// subscription state. It is an external collaborator; the router trusts its
// verdicts verbatim.
type AccessPolicy interface {
	Decide(ctx context.Context, req *domain.AnalysisRequest) (domain.RoutingDecision, error)
}

// SettingsStore exposes the user-facing analysis settings.
type SettingsStore interface {
	CloudAnalysisEnabled() bool
	HighAccuracyMode() bool
	CloudAssistThreshold() float64
	MinimumAcceptableConfidence() float64
}

// AnalysisRepository persists submitted documents and their results.
type AnalysisRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result *domain.AnalysisResult) error
}

// ObjectStorage stores raw scan payloads (PDFs, page images).
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue decouples scan submission from analysis.
type MessageQueue interface {
	PublishDocumentReceived(ctx context.Context, documentID string) error
	SubscribeDocumentReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor turns a stored scan payload into OCR-style text lines.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]domain.TextLine, error)
}
