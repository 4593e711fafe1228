package cloud

import (
	"fmt"
	"time"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

type analyzeLine struct {
	Text string `json:"text"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	W    int    `json:"w"`
	H    int    `json:"h"`
}

type analyzeRequest struct {
	Model        string        `json:"model,omitempty"`
	DocumentType string        `json:"document_type"`
	Language     string        `json:"language,omitempty"`
	Currency     string        `json:"currency,omitempty"`
	Lines        []analyzeLine `json:"lines"`
	PageRefs     []string      `json:"page_refs,omitempty"`
}

type uploadPage struct {
	StorageKey string `json:"storage_key"`
	MimeType   string `json:"mime_type"`
}

type uploadRequest struct {
	Pages []uploadPage `json:"pages"`
}

type uploadResponse struct {
	References []string `json:"references"`
}

type boxDTO struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type fieldDTO struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Box        *boxDTO `json:"box,omitempty"`
}

type amountDTO struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Confidence float64 `json:"confidence"`
	Box        *boxDTO `json:"box,omitempty"`
}

type dateDTO struct {
	Date       string  `json:"date"`
	Confidence float64 `json:"confidence"`
	Box        *boxDTO `json:"box,omitempty"`
}

type candidateDTO struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Box        *boxDTO `json:"box,omitempty"`
}

type amountCandidateDTO struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Confidence float64 `json:"confidence"`
	Box        *boxDTO `json:"box,omitempty"`
}

type dateCandidateDTO struct {
	Date  string  `json:"date"`
	Score int     `json:"score"`
	Box   *boxDTO `json:"box,omitempty"`
}

type analyzeResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`

	Vendor         *fieldDTO  `json:"vendor,omitempty"`
	VendorAddress  *fieldDTO  `json:"vendor_address,omitempty"`
	TaxID          *fieldDTO  `json:"tax_id,omitempty"`
	RegistryID     *fieldDTO  `json:"registry_id,omitempty"`
	Amount         *amountDTO `json:"amount,omitempty"`
	DueDate        *dateDTO   `json:"due_date,omitempty"`
	DocumentNumber *fieldDTO  `json:"document_number,omitempty"`
	BankAccount    *fieldDTO  `json:"bank_account,omitempty"`

	VendorCandidates         []candidateDTO       `json:"vendor_candidates,omitempty"`
	AmountCandidates         []amountCandidateDTO `json:"amount_candidates,omitempty"`
	DateCandidates           []dateCandidateDTO   `json:"date_candidates,omitempty"`
	TaxIDCandidates          []candidateDTO       `json:"tax_id_candidates,omitempty"`
	DocumentNumberCandidates []candidateDTO       `json:"document_number_candidates,omitempty"`
	BankAccountCandidates    []candidateDTO       `json:"bank_account_candidates,omitempty"`
	SuggestedAmounts         []float64            `json:"suggested_amounts,omitempty"`
}

func buildAnalyzePayload(model string, req *domain.AnalysisRequest, pageRefs []string) analyzeRequest {
	lines := make([]analyzeLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, analyzeLine{
			Text: line.Text,
			X:    line.Box.X,
			Y:    line.Box.Y,
			W:    line.Box.Width,
			H:    line.Box.Height,
		})
	}
	return analyzeRequest{
		Model:        model,
		DocumentType: string(req.DocumentType),
		Language:     req.LanguageHint,
		Currency:     req.CurrencyHint,
		Lines:        lines,
		PageRefs:     pageRefs,
	}
}

// toDomain validates and converts the backend response. A response the
// backend itself marks incomplete is an analysisIncomplete error, not a
// result.
func (r *analyzeResponse) toDomain() (*domain.AnalysisResult, error) {
	if r.Status == "incomplete" {
		return nil, domain.NewExtractionError(domain.ErrKindAnalysisIncomplete, "backend reported incomplete analysis", nil)
	}

	result := &domain.AnalysisResult{
		Vendor:         r.Vendor.toDomain(),
		VendorAddress:  r.VendorAddress.toDomain(),
		TaxID:          r.TaxID.toDomain(),
		RegistryID:     r.RegistryID.toDomain(),
		DocumentNumber: r.DocumentNumber.toDomain(),
		BankAccount:    r.BankAccount.toDomain(),

		SuggestedAmounts: r.SuggestedAmounts,

		Method:        domain.MethodCloudAI,
		Provider:      r.Provider,
		SchemaVersion: domain.ResultSchemaVersion,
	}
	if result.Provider == "" {
		result.Provider = ProviderName
	}

	if r.Amount != nil {
		result.Amount = &domain.AmountField{
			Amount:     r.Amount.Amount,
			Currency:   r.Amount.Currency,
			Confidence: r.Amount.Confidence,
			Method:     domain.MethodCloudAI,
			Evidence:   r.Amount.Box.toDomain(),
		}
	}
	if r.DueDate != nil {
		date, err := parseResponseDate(r.DueDate.Date)
		if err != nil {
			return nil, fmt.Errorf("due date: %w", err)
		}
		result.DueDate = &domain.DateField{
			Date:       date,
			Confidence: r.DueDate.Confidence,
			Method:     domain.MethodCloudAI,
			Evidence:   r.DueDate.Box.toDomain(),
		}
	}

	result.VendorCandidates = toCandidates(r.VendorCandidates)
	result.TaxIDCandidates = toCandidates(r.TaxIDCandidates)
	result.DocumentNumberCandidates = toCandidates(r.DocumentNumberCandidates)
	result.BankAccountCandidates = toCandidates(r.BankAccountCandidates)

	for _, c := range r.AmountCandidates {
		result.AmountCandidates = append(result.AmountCandidates, domain.AmountCandidate{
			Amount:     c.Amount,
			Currency:   c.Currency,
			Confidence: c.Confidence,
			Method:     domain.MethodCloudAI,
			Evidence:   c.Box.toDomain(),
		})
	}
	for _, c := range r.DateCandidates {
		date, err := parseResponseDate(c.Date)
		if err != nil {
			return nil, fmt.Errorf("date candidate: %w", err)
		}
		result.DateCandidates = append(result.DateCandidates, domain.DateCandidate{
			Date:     date,
			Score:    c.Score,
			Method:   domain.MethodCloudAI,
			Evidence: c.Box.toDomain(),
		})
	}

	result.OverallConfidence = result.OverallFromFields()
	return result, nil
}

func (f *fieldDTO) toDomain() *domain.StringField {
	if f == nil || f.Value == "" {
		return nil
	}
	return &domain.StringField{
		Value:      f.Value,
		Confidence: f.Confidence,
		Method:     domain.MethodCloudAI,
		Evidence:   f.Box.toDomain(),
	}
}

func (b *boxDTO) toDomain() *domain.BoundingBox {
	if b == nil {
		return nil
	}
	return &domain.BoundingBox{X: b.X, Y: b.Y, Width: b.W, Height: b.H}
}

func toCandidates(dtos []candidateDTO) []domain.Candidate {
	if len(dtos) == 0 {
		return nil
	}
	out := make([]domain.Candidate, 0, len(dtos))
	for _, c := range dtos {
		out = append(out, domain.Candidate{
			Value:      c.Value,
			Confidence: c.Confidence,
			Method:     domain.MethodCloudAI,
			Evidence:   c.Box.toDomain(),
		})
	}
	return out
}

func parseResponseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}
