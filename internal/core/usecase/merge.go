package usecase

import "github.com/abalcerek/docuscan/internal/core/domain"

// MergeResults combines a primary result with supplementary data from a
// secondary one. Every scalar field, its confidence and its method tag come
// from primary unconditionally. Candidate lists and evidence boxes fall back
// to secondary only where primary produced none, giving a cloud-accurate
// result with locally sourced alternatives when the cloud omits its own.
func MergeResults(primary, secondary *domain.AnalysisResult) *domain.AnalysisResult {
	if primary == nil {
		return secondary
	}
	if secondary == nil {
		return primary
	}

	merged := *primary

	if len(merged.VendorCandidates) == 0 {
		merged.VendorCandidates = secondary.VendorCandidates
	}
	if len(merged.AmountCandidates) == 0 {
		merged.AmountCandidates = secondary.AmountCandidates
	}
	if len(merged.DateCandidates) == 0 {
		merged.DateCandidates = secondary.DateCandidates
	}
	if len(merged.TaxIDCandidates) == 0 {
		merged.TaxIDCandidates = secondary.TaxIDCandidates
	}
	if len(merged.DocumentNumberCandidates) == 0 {
		merged.DocumentNumberCandidates = secondary.DocumentNumberCandidates
	}
	if len(merged.BankAccountCandidates) == 0 {
		merged.BankAccountCandidates = secondary.BankAccountCandidates
	}
	if len(merged.SuggestedAmounts) == 0 {
		merged.SuggestedAmounts = secondary.SuggestedAmounts
	}

	merged.Vendor = backfillEvidence(merged.Vendor, secondary.Vendor)
	merged.VendorAddress = backfillEvidence(merged.VendorAddress, secondary.VendorAddress)
	merged.TaxID = backfillEvidence(merged.TaxID, secondary.TaxID)
	merged.RegistryID = backfillEvidence(merged.RegistryID, secondary.RegistryID)
	merged.DocumentNumber = backfillEvidence(merged.DocumentNumber, secondary.DocumentNumber)
	merged.BankAccount = backfillEvidence(merged.BankAccount, secondary.BankAccount)
	if merged.Amount != nil && merged.Amount.Evidence == nil && secondary.Amount != nil && secondary.Amount.Evidence != nil {
		amount := *merged.Amount
		amount.Evidence = secondary.Amount.Evidence
		merged.Amount = &amount
	}
	if merged.DueDate != nil && merged.DueDate.Evidence == nil && secondary.DueDate != nil && secondary.DueDate.Evidence != nil {
		due := *merged.DueDate
		due.Evidence = secondary.DueDate.Evidence
		merged.DueDate = &due
	}

	return &merged
}

func backfillEvidence(primary, secondary *domain.StringField) *domain.StringField {
	if primary == nil || primary.Evidence != nil || secondary == nil || secondary.Evidence == nil {
		return primary
	}
	field := *primary
	field.Evidence = secondary.Evidence
	return &field
}
