package domain

// DocumentType tags what kind of financial document a scan is expected to be.
type DocumentType string

const (
	DocumentTypeInvoice DocumentType = "invoice"
	DocumentTypeReceipt DocumentType = "receipt"
	DocumentTypeBill    DocumentType = "bill"
	DocumentTypeUnknown DocumentType = "unknown"
)

// BoundingBox locates a piece of text on the source page, in page pixel
// coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextLine is a single OCR line with its position on the page.
type TextLine struct {
	Text string      `json:"text"`
	Box  BoundingBox `json:"box"`
}

// PageImage references one scanned page stored in object storage.
type PageImage struct {
	StorageKey string `json:"storage_key"`
	MimeType   string `json:"mime_type"`
}

// AnalysisRequest carries everything needed to analyze one scanned document.
// It is constructed once per scan and never mutated afterwards.
type AnalysisRequest struct {
	Lines        []TextLine   `json:"lines"`
	Pages        []PageImage  `json:"pages,omitempty"`
	DocumentType DocumentType `json:"document_type"`
	LanguageHint string       `json:"language_hint,omitempty"`
	CurrencyHint string       `json:"currency_hint,omitempty"`
}

// Text joins all OCR lines into a single newline-separated string.
func (r *AnalysisRequest) Text() string {
	if r == nil || len(r.Lines) == 0 {
		return ""
	}
	out := make([]byte, 0, 256)
	for i, line := range r.Lines {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, line.Text...)
	}
	return string(out)
}
