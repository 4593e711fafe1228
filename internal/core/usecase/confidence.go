package usecase

import "github.com/abalcerek/docuscan/internal/core/domain"

// Candidate weights for the local-confidence average. Vendor, amount and
// date carry double weight: they drive the primary UI and payment flows.
const (
	weightVendor      = 2.0
	weightAmount      = 2.0
	weightDate        = 2.0
	weightTaxID       = 1.0
	weightDocNumber   = 1.0
	weightBankAccount = 1.0
)

// EvaluateLocalConfidence computes the weighted average over the candidate
// confidences a local result actually produced. Fields without candidates
// are excluded from numerator and denominator; an empty result scores 0.
// Date candidates report a 0-100 integer score and are normalized to 0-1
// (clamped) before weighting.
func EvaluateLocalConfidence(result *domain.AnalysisResult) float64 {
	if result == nil {
		return 0
	}

	var sum, weights float64

	for _, c := range result.VendorCandidates {
		sum += weightVendor * c.Confidence
		weights += weightVendor
	}
	for _, c := range result.AmountCandidates {
		sum += weightAmount * c.Confidence
		weights += weightAmount
	}
	for _, c := range result.DateCandidates {
		score := float64(c.Score) / 100.0
		if score > 1.0 {
			score = 1.0
		}
		sum += weightDate * score
		weights += weightDate
	}
	for _, c := range result.TaxIDCandidates {
		sum += weightTaxID * c.Confidence
		weights += weightTaxID
	}
	for _, c := range result.DocumentNumberCandidates {
		sum += weightDocNumber * c.Confidence
		weights += weightDocNumber
	}
	for _, c := range result.BankAccountCandidates {
		sum += weightBankAccount * c.Confidence
		weights += weightBankAccount
	}

	if weights == 0 {
		return 0
	}
	return sum / weights
}
