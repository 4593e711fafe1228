package domain

import "time"

type DocumentStatus string

const (
	StatusReceived  DocumentStatus = "received"
	StatusAnalyzing DocumentStatus = "analyzing"
	StatusDone      DocumentStatus = "done"
	StatusFailed    DocumentStatus = "failed"
)

// Document is the persisted lifecycle record of one submitted scan. The OCR
// payload is stored with it so the worker can rebuild the immutable
// AnalysisRequest at processing time.
type Document struct {
	ID           string          `json:"id"`
	Filename     string          `json:"filename"`
	MimeType     string          `json:"mime_type"`
	StoragePath  string          `json:"storage_path"`
	DocumentType DocumentType    `json:"document_type"`
	LanguageHint string          `json:"language_hint,omitempty"`
	CurrencyHint string          `json:"currency_hint,omitempty"`
	Lines        []TextLine      `json:"lines,omitempty"`
	Status       DocumentStatus  `json:"status"`
	Error        string          `json:"error,omitempty"`
	Result       *AnalysisResult `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Submission is the metadata accompanying an uploaded scan payload. OCR
// lines are optional; when absent the worker extracts text from the stored
// payload instead.
type Submission struct {
	Filename     string
	MimeType     string
	DocumentType DocumentType
	LanguageHint string
	CurrencyHint string
	Lines        []TextLine
}

// Request builds the immutable analysis input for this document.
func (d *Document) Request() *AnalysisRequest {
	return &AnalysisRequest{
		Lines:        d.Lines,
		DocumentType: d.DocumentType,
		LanguageHint: d.LanguageHint,
		CurrencyHint: d.CurrencyHint,
	}
}
