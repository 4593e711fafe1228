package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abalcerek/docuscan/internal/core/domain"
	"github.com/abalcerek/docuscan/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.AnalysisRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.AnalysisRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Submit stores the raw scan payload, records the document and queues it for
// analysis.
func (uc *IngestDocumentUseCase) Submit(
	ctx context.Context,
	sub domain.Submission,
	payload io.Reader,
) (*domain.Document, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	storageKey := ""
	if payload != nil {
		storageKey = fmt.Sprintf("%s_%s", id, sanitizeFilename(sub.Filename))
		if err := uc.storage.Save(ctx, storageKey, payload); err != nil {
			return nil, fmt.Errorf("save scan payload: %w", err)
		}
	}

	documentType := sub.DocumentType
	if documentType == "" {
		documentType = domain.DocumentTypeUnknown
	}

	doc := &domain.Document{
		ID:           id,
		Filename:     sub.Filename,
		MimeType:     sub.MimeType,
		StoragePath:  storageKey,
		DocumentType: documentType,
		LanguageHint: sub.LanguageHint,
		CurrencyHint: sub.CurrencyHint,
		Lines:        sub.Lines,
		Status:       domain.StatusReceived,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishDocumentReceived(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish analysis event: %w", err)
	}

	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "document"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
