package local

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

const ProviderName = "local-heuristics"

// Analyzer extracts fields from OCR lines with pattern matching and
// checksum validation. It never touches the network, so it stays usable
// offline and as the fallback behind the cloud backend.
type Analyzer struct{}

func New() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Analyze(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil || len(req.Lines) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "local analyze", errors.New("no text lines"))
	}

	result := &domain.AnalysisResult{
		Method:        domain.MethodLocalOCR,
		Provider:      ProviderName,
		SchemaVersion: domain.ResultSchemaVersion,
	}

	a.extractVendor(req.Lines, result)
	a.extractTaxID(req.Lines, result)
	a.extractRegistryID(req.Lines, result)
	a.extractBankAccount(req.Lines, result)
	a.extractAmounts(req, result)
	a.extractDates(req.Lines, result)
	a.extractDocumentNumber(req.Lines, result)

	result.OverallConfidence = result.OverallFromFields()
	return result, nil
}

// extractVendor treats the top of the page as the letterhead. Lines with a
// legal-form suffix outrank plain text lines.
func (a *Analyzer) extractVendor(lines []domain.TextLine, result *domain.AnalysisResult) {
	inspected := 0
	for i := range lines {
		line := lines[i]
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		inspected++
		if inspected > 6 {
			break
		}
		lower := strings.ToLower(text)
		if strings.Contains(lower, "faktura") || strings.Contains(lower, "invoice") || strings.Contains(lower, "paragon") {
			continue
		}
		if amountPattern.MatchString(text) || taxIDPattern.MatchString(text) {
			continue
		}
		if len([]rune(text)) < 3 {
			continue
		}

		confidence := 0.5
		if containsAny(lower, vendorLegalSuffixes) {
			confidence = 0.85
		}
		result.VendorCandidates = append(result.VendorCandidates, candidate(text, confidence, line.Box))

		if postalPattern.MatchString(text) && result.VendorAddress == nil {
			result.VendorAddress = field(text, 0.6, line.Box)
		}
	}

	if best := bestCandidate(result.VendorCandidates); best != nil {
		result.Vendor = &domain.StringField{
			Value:      best.Value,
			Confidence: best.Confidence,
			Method:     domain.MethodLocalOCR,
			Evidence:   best.Evidence,
		}
	}
}

func (a *Analyzer) extractTaxID(lines []domain.TextLine, result *domain.AnalysisResult) {
	for i := range lines {
		line := lines[i]
		lower := strings.ToLower(line.Text)
		for _, match := range taxIDPattern.FindAllString(line.Text, -1) {
			digits := onlyDigits(match)
			if !validTaxID(digits) {
				continue
			}
			confidence := 0.6
			if strings.Contains(lower, "nip") {
				confidence = 0.95
			}
			result.TaxIDCandidates = append(result.TaxIDCandidates, candidate(digits, confidence, line.Box))
		}
	}
	if best := bestCandidate(result.TaxIDCandidates); best != nil {
		result.TaxID = field(best.Value, best.Confidence, *evidenceBox(best))
	}
}

func (a *Analyzer) extractRegistryID(lines []domain.TextLine, result *domain.AnalysisResult) {
	for i := range lines {
		line := lines[i]
		match := regonPattern.FindStringSubmatch(line.Text)
		if match == nil || !validRegon(match[1]) {
			continue
		}
		result.RegistryID = field(match[1], 0.7, line.Box)
		return
	}
}

func (a *Analyzer) extractBankAccount(lines []domain.TextLine, result *domain.AnalysisResult) {
	for i := range lines {
		line := lines[i]
		lower := strings.ToLower(line.Text)
		for _, match := range accountPattern.FindAllStringSubmatch(line.Text, -1) {
			digits := onlyDigits(match[1])
			if !validAccount(digits) {
				continue
			}
			confidence := 0.75
			if strings.Contains(lower, "konto") || strings.Contains(lower, "rachunek") ||
				strings.Contains(lower, "account") || strings.Contains(lower, "iban") {
				confidence = 0.9
			}
			result.BankAccountCandidates = append(result.BankAccountCandidates, candidate(digits, confidence, line.Box))
		}
	}
	if best := bestCandidate(result.BankAccountCandidates); best != nil {
		result.BankAccount = field(best.Value, best.Confidence, *evidenceBox(best))
	}
}

// extractAmounts collects every money-looking token; keyword lines such as
// "do zapłaty" promote their amount to the primary field.
func (a *Analyzer) extractAmounts(req *domain.AnalysisRequest, result *domain.AnalysisResult) {
	for i := range req.Lines {
		line := req.Lines[i]
		lower := strings.ToLower(line.Text)
		keyworded := containsAny(lower, amountKeywords)
		for _, match := range amountPattern.FindAllStringSubmatch(maskDates(line.Text), -1) {
			value, ok := parseAmount(match[1])
			if !ok || value <= 0 {
				continue
			}
			currency := normalizeCurrency(match[2])
			if currency == "" {
				currency = req.CurrencyHint
			}
			confidence := 0.5
			if keyworded {
				confidence = 0.9
			}
			box := line.Box
			result.AmountCandidates = append(result.AmountCandidates, domain.AmountCandidate{
				Amount:     value,
				Currency:   currency,
				Confidence: confidence,
				Method:     domain.MethodLocalOCR,
				Evidence:   &box,
			})
		}
	}
	if len(result.AmountCandidates) == 0 {
		return
	}

	best := result.AmountCandidates[0]
	for _, c := range result.AmountCandidates[1:] {
		if c.Confidence > best.Confidence || (c.Confidence == best.Confidence && c.Amount > best.Amount) {
			best = c
		}
	}
	result.Amount = &domain.AmountField{
		Amount:     best.Amount,
		Currency:   best.Currency,
		Confidence: best.Confidence,
		Method:     domain.MethodLocalOCR,
		Evidence:   best.Evidence,
	}

	seen := make(map[float64]struct{}, len(result.AmountCandidates))
	for _, c := range result.AmountCandidates {
		if _, ok := seen[c.Amount]; ok {
			continue
		}
		seen[c.Amount] = struct{}{}
		result.SuggestedAmounts = append(result.SuggestedAmounts, c.Amount)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(result.SuggestedAmounts)))
	if len(result.SuggestedAmounts) > 5 {
		result.SuggestedAmounts = result.SuggestedAmounts[:5]
	}
}

// extractDates scores candidates 0-100; a date on a payment-terms line is
// almost certainly the due date.
func (a *Analyzer) extractDates(lines []domain.TextLine, result *domain.AnalysisResult) {
	for i := range lines {
		line := lines[i]
		lower := strings.ToLower(line.Text)
		score := 40
		if containsAny(lower, dueDateKeywords) {
			score = 90
		}
		for _, pattern := range datePatterns {
			for _, match := range pattern.re.FindAllString(line.Text, -1) {
				ts, err := time.Parse(pattern.layout, match)
				if err != nil {
					continue
				}
				box := line.Box
				result.DateCandidates = append(result.DateCandidates, domain.DateCandidate{
					Date:     ts,
					Score:    score,
					Method:   domain.MethodLocalOCR,
					Evidence: &box,
				})
			}
		}
	}
	if len(result.DateCandidates) == 0 {
		return
	}

	best := result.DateCandidates[0]
	for _, c := range result.DateCandidates[1:] {
		if c.Score > best.Score || (c.Score == best.Score && c.Date.After(best.Date)) {
			best = c
		}
	}
	result.DueDate = &domain.DateField{
		Date:       best.Date,
		Confidence: float64(best.Score) / 100,
		Method:     domain.MethodLocalOCR,
		Evidence:   best.Evidence,
	}
}

func (a *Analyzer) extractDocumentNumber(lines []domain.TextLine, result *domain.AnalysisResult) {
	for i := range lines {
		line := lines[i]
		match := numberPattern.FindStringSubmatch(line.Text)
		if match == nil {
			continue
		}
		number := strings.TrimRight(match[1], ".")
		if !strings.ContainsAny(number, "0123456789") {
			continue
		}
		result.DocumentNumberCandidates = append(result.DocumentNumberCandidates, candidate(number, 0.85, line.Box))
	}
	if best := bestCandidate(result.DocumentNumberCandidates); best != nil {
		result.DocumentNumber = field(best.Value, best.Confidence, *evidenceBox(best))
	}
}

func candidate(value string, confidence float64, box domain.BoundingBox) domain.Candidate {
	return domain.Candidate{
		Value:      value,
		Confidence: confidence,
		Method:     domain.MethodLocalOCR,
		Evidence:   &box,
	}
}

func field(value string, confidence float64, box domain.BoundingBox) *domain.StringField {
	return &domain.StringField{
		Value:      value,
		Confidence: confidence,
		Method:     domain.MethodLocalOCR,
		Evidence:   &box,
	}
}

func bestCandidate(candidates []domain.Candidate) *domain.Candidate {
	var best *domain.Candidate
	for i := range candidates {
		if best == nil || candidates[i].Confidence > best.Confidence {
			best = &candidates[i]
		}
	}
	return best
}

func evidenceBox(c *domain.Candidate) *domain.BoundingBox {
	if c.Evidence != nil {
		return c.Evidence
	}
	return &domain.BoundingBox{}
}
