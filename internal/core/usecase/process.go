package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/abalcerek/docuscan/internal/core/domain"
	"github.com/abalcerek/docuscan/internal/core/ports"
)

// ProcessDocumentUseCase runs the hybrid router against a queued document
// and persists the annotated result.
type ProcessDocumentUseCase struct {
	repo      ports.AnalysisRepository
	extractor ports.TextExtractor
	router    ports.DocumentRouter
}

func NewProcessDocumentUseCase(
	repo ports.AnalysisRepository,
	extractor ports.TextExtractor,
	router ports.DocumentRouter,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		router:    router,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusAnalyzing, ""); err != nil {
		return fmt.Errorf("set status=analyzing: %w", err)
	}

	result, err := uc.analyze(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveResult(ctx, documentID, result); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save analysis result: %w", err)
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusDone, ""); err != nil {
		return fmt.Errorf("set status=done: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) analyze(ctx context.Context, documentID string) (*domain.AnalysisResult, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	req, err := uc.buildRequest(ctx, doc)
	if err != nil {
		return nil, err
	}

	// Queued documents carry no caller decision; the router derives one.
	result, err := uc.router.Route(ctx, req, nil)
	if err != nil {
		return nil, fmt.Errorf("route analysis: %w", err)
	}
	return result, nil
}

func (uc *ProcessDocumentUseCase) buildRequest(ctx context.Context, doc *domain.Document) (*domain.AnalysisRequest, error) {
	if len(doc.Lines) > 0 {
		return doc.Request(), nil
	}
	if doc.StoragePath == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build analysis request", errors.New("document has neither OCR lines nor a stored payload"))
	}

	lines, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if len(lines) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("no text extracted from payload"))
	}

	req := doc.Request()
	req.Lines = lines
	return req, nil
}
