package domain

import "time"

// ExtractionMethod records which engine produced a value.
type ExtractionMethod string

const (
	MethodLocalOCR ExtractionMethod = "local_ocr"
	MethodCloudAI  ExtractionMethod = "cloud_ai"
	MethodManual   ExtractionMethod = "manual"
)

// ExtractionMode records how a result was routed. It is attached once, after
// routing completes, for observability and UI messaging. Routing itself never
// reads it.
type ExtractionMode string

const (
	ModeCloud             ExtractionMode = "cloud"
	ModeLocalOnly         ExtractionMode = "local_only"
	ModeLocalFallback     ExtractionMode = "local_fallback"
	ModeOfflineFallback   ExtractionMode = "offline_fallback"
	ModeRateLimitFallback ExtractionMode = "rate_limit_fallback"
)

// RateLimitInfo is quota metadata propagated from a rate-limited cloud call
// so the UI can render an upgrade prompt.
type RateLimitInfo struct {
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// StringField is an extracted textual field. A nil *StringField means the
// field was not extracted at all, which is distinct from an extracted value
// with zero confidence.
type StringField struct {
	Value      string           `json:"value"`
	Confidence float64          `json:"confidence"`
	Method     ExtractionMethod `json:"method"`
	Evidence   *BoundingBox     `json:"evidence,omitempty"`
}

// AmountField is an extracted monetary amount.
type AmountField struct {
	Amount     float64          `json:"amount"`
	Currency   string           `json:"currency"`
	Confidence float64          `json:"confidence"`
	Method     ExtractionMethod `json:"method"`
	Evidence   *BoundingBox     `json:"evidence,omitempty"`
}

// DateField is an extracted date.
type DateField struct {
	Date       time.Time        `json:"date"`
	Confidence float64          `json:"confidence"`
	Method     ExtractionMethod `json:"method"`
	Evidence   *BoundingBox     `json:"evidence,omitempty"`
}

// Candidate is an alternative value for a textual field, offered to the UI
// next to the primary extracted value.
type Candidate struct {
	Value      string           `json:"value"`
	Confidence float64          `json:"confidence"`
	Method     ExtractionMethod `json:"method"`
	Evidence   *BoundingBox     `json:"evidence,omitempty"`
}

// AmountCandidate is an alternative monetary amount.
type AmountCandidate struct {
	Amount     float64          `json:"amount"`
	Currency   string           `json:"currency"`
	Confidence float64          `json:"confidence"`
	Method     ExtractionMethod `json:"method"`
	Evidence   *BoundingBox     `json:"evidence,omitempty"`
}

// DateCandidate is an alternative date. Score is a 0-100 integer, not a 0-1
// confidence; consumers normalize it before comparing across field kinds.
type DateCandidate struct {
	Date     time.Time        `json:"date"`
	Score    int              `json:"score"`
	Method   ExtractionMethod `json:"method"`
	Evidence *BoundingBox     `json:"evidence,omitempty"`
}

// ResultSchemaVersion is bumped whenever the persisted result shape changes.
const ResultSchemaVersion = 2

// AnalysisResult is the extracted field set for one document. Results are
// value objects: attaching a mode or rate-limit metadata produces a copy.
type AnalysisResult struct {
	Vendor         *StringField `json:"vendor,omitempty"`
	VendorAddress  *StringField `json:"vendor_address,omitempty"`
	TaxID          *StringField `json:"tax_id,omitempty"`
	RegistryID     *StringField `json:"registry_id,omitempty"`
	Amount         *AmountField `json:"amount,omitempty"`
	DueDate        *DateField   `json:"due_date,omitempty"`
	DocumentNumber *StringField `json:"document_number,omitempty"`
	BankAccount    *StringField `json:"bank_account,omitempty"`

	VendorCandidates         []Candidate       `json:"vendor_candidates,omitempty"`
	AmountCandidates         []AmountCandidate `json:"amount_candidates,omitempty"`
	DateCandidates           []DateCandidate   `json:"date_candidates,omitempty"`
	TaxIDCandidates          []Candidate       `json:"tax_id_candidates,omitempty"`
	DocumentNumberCandidates []Candidate       `json:"document_number_candidates,omitempty"`
	BankAccountCandidates    []Candidate       `json:"bank_account_candidates,omitempty"`
	SuggestedAmounts         []float64         `json:"suggested_amounts,omitempty"`

	OverallConfidence float64          `json:"overall_confidence"`
	Method            ExtractionMethod `json:"method"`
	Provider          string           `json:"provider"`
	SchemaVersion     int              `json:"schema_version"`

	Mode      ExtractionMode `json:"mode,omitempty"`
	RateLimit *RateLimitInfo `json:"rate_limit,omitempty"`
}

// WithMode returns a copy of the result tagged with the given extraction mode.
func (r AnalysisResult) WithMode(mode ExtractionMode) AnalysisResult {
	r.Mode = mode
	return r
}

// WithRateLimit returns a copy of the result carrying rate-limit metadata.
func (r AnalysisResult) WithRateLimit(info *RateLimitInfo) AnalysisResult {
	r.RateLimit = info
	return r
}

// OverallFromFields computes the mean of the non-zero confidences of the
// fields that were actually produced. Absent fields never dilute the mean.
func (r *AnalysisResult) OverallFromFields() float64 {
	var sum float64
	var n int

	add := func(confidence float64) {
		if confidence > 0 {
			sum += confidence
			n++
		}
	}
	for _, f := range []*StringField{r.Vendor, r.VendorAddress, r.TaxID, r.RegistryID, r.DocumentNumber, r.BankAccount} {
		if f != nil {
			add(f.Confidence)
		}
	}
	if r.Amount != nil {
		add(r.Amount.Confidence)
	}
	if r.DueDate != nil {
		add(r.DueDate.Confidence)
	}

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
