package local

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	taxIDPattern   = regexp.MustCompile(`\b(\d{3}[- ]?\d{3}[- ]?\d{2}[- ]?\d{2}|\d{3}[- ]?\d{2}[- ]?\d{2}[- ]?\d{3}|\d{10})\b`)
	regonPattern   = regexp.MustCompile(`(?i)REGON[:\s]*(\d{9}|\d{14})\b`)
	accountPattern = regexp.MustCompile(`\b(?:PL\s?)?(\d{2}(?:[ -]?\d{4}){6})\b`)
	amountPattern  = regexp.MustCompile(`((?:\d{1,3}(?:[ .\x{00a0}]\d{3})+|\d+)[.,]\d{2})(?:\s*(z[łl]|PLN|EUR|USD|€|\$))?`)
	numberPattern  = regexp.MustCompile(`(?i)(?:faktura(?:\s+VAT)?|invoice|rachunek|paragon)\s*(?:nr\.?|no\.?|#|number)?\s*:?\s*([A-Z0-9][A-Z0-9/\-.]{2,})`)
	postalPattern  = regexp.MustCompile(`\b\d{2}-\d{3}\b`)

	datePatterns = []struct {
		re     *regexp.Regexp
		layout string
	}{
		{regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`), "2006-01-02"},
		{regexp.MustCompile(`\b(\d{2}\.\d{2}\.\d{4})\b`), "02.01.2006"},
		{regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`), "02/01/2006"},
		{regexp.MustCompile(`\b(\d{2}-\d{2}-\d{4})\b`), "02-01-2006"},
	}
)

var amountKeywords = []string{
	"do zapłaty", "do zaplaty", "razem", "suma", "należność", "naleznosc",
	"total", "amount due", "balance due",
}

var dueDateKeywords = []string{
	"termin płatności", "termin platnosci", "termin zapłaty", "termin zaplaty",
	"płatne do", "platne do", "due date", "payment due", "due by", "pay by",
}

var vendorLegalSuffixes = []string{
	"sp. z o.o.", "sp.z o.o.", "s.a.", "sp.j.", "sp.k.", "s.c.",
	"gmbh", "ltd", "llc", "inc.", "b.v.", "oy",
}

// validTaxID checks the Polish NIP checksum over ten digits.
func validTaxID(digits string) bool {
	if len(digits) != 10 {
		return false
	}
	weights := []int{6, 5, 7, 2, 3, 4, 5, 6, 7}
	sum := 0
	for i, w := range weights {
		sum += w * int(digits[i]-'0')
	}
	check := sum % 11
	return check != 10 && check == int(digits[9]-'0')
}

// validAccount checks the 26-digit domestic account number by running the
// IBAN mod-97 test over its PL form.
func validAccount(digits string) bool {
	if len(digits) != 26 {
		return false
	}
	// Rearranged PL IBAN: BBAN, then "PL" as digits (25 21), then the two
	// check digits.
	rem := 0
	for _, r := range digits[2:] + "2521" + digits[:2] {
		rem = (rem*10 + int(r-'0')) % 97
	}
	return rem == 1
}

// validRegon checks the nine-digit REGON checksum; fourteen-digit numbers
// are accepted without validation.
func validRegon(digits string) bool {
	if len(digits) == 14 {
		return true
	}
	if len(digits) != 9 {
		return false
	}
	weights := []int{8, 9, 2, 3, 4, 5, 6, 7}
	sum := 0
	for i, w := range weights {
		sum += w * int(digits[i]-'0')
	}
	check := sum % 11
	if check == 10 {
		check = 0
	}
	return check == int(digits[8]-'0')
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseAmount normalizes a formatted amount ("1 230,00", "1.230,00",
// "1230.00") into a float.
func parseAmount(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, raw)

	// The last separator is the decimal mark; everything before it is a
	// thousands separator.
	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')
	decimal := lastComma
	if lastDot > lastComma {
		decimal = lastDot
	}
	if decimal < 0 || len(cleaned)-decimal != 3 {
		return 0, false
	}

	intPart := strings.NewReplacer(",", "", ".", "").Replace(cleaned[:decimal])
	value, err := strconv.ParseFloat(intPart+"."+cleaned[decimal+1:], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func normalizeCurrency(symbol string) string {
	switch strings.ToUpper(strings.TrimSpace(symbol)) {
	case "ZŁ", "ZL", "PLN":
		return "PLN"
	case "€", "EUR":
		return "EUR"
	case "$", "USD":
		return "USD"
	default:
		return ""
	}
}

// maskDates blanks date tokens so "01.08.2026" cannot be misread as the
// amount 1.08.
func maskDates(s string) string {
	for _, pattern := range datePatterns {
		s = pattern.re.ReplaceAllStringFunc(s, func(m string) string {
			return strings.Repeat(" ", len(m))
		})
	}
	return s
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
