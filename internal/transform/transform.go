// Package transform implements the pure, deterministic transform functions
// the parser/mapper (C1) dispatches to by name, plus the shared DWINGS
// token extractors used by the linker (C5). No function here performs I/O.
package transform

import (
	"regexp"
	"strings"

	"github.com/ambre-dwings/reconcile/internal/model"
)

var (
	mbawPattern       = regexp.MustCompile(`(?i)MBAW[A-Z0-9]+`)
	bgpmtPattern      = regexp.MustCompile(`(?i)BGPMT[A-Z0-9]{6,}`)
	bgiStrictPattern  = regexp.MustCompile(`(?i)BGI\d{13}\b`)
	bgiLoosePattern   = regexp.MustCompile(`(?i)BGI[A-Z0-9]*\d+`)
	guaranteePattern  = regexp.MustCompile(`(?i)GUA[A-Z0-9]{6,}`)
)

// CountryTable resolves a raw code to its 2-letter country booking
// identifier. Configured per deployment; an empty table is valid (every
// lookup then falls through to the identity transform).
type CountryTable map[string]string

// GetBookingNameFromID resolves a 2-letter country identifier from a
// configured country table; returns the input unchanged if unresolved.
func GetBookingNameFromID(code string, table CountryTable) string {
	if name, ok := table[code]; ok {
		return name
	}
	return code
}

// GetMbawIDFromLabel extracts an uppercased MBAW token from a label, or
// empty string if there is no match.
func GetMbawIDFromLabel(label string) string {
	m := mbawPattern.FindString(label)
	return strings.ToUpper(m)
}

// GetCodesFromLabel returns the trailing 13 characters of the trimmed
// label, or the whole trimmed label if it is shorter than 13 characters.
func GetCodesFromLabel(label string) string {
	trimmed := strings.TrimSpace(label)
	if len(trimmed) <= 13 {
		return trimmed
	}
	return trimmed[len(trimmed)-13:]
}

// GetTRNFromLabel returns the 10-character substring starting at 1-based
// character 43 of the label, or empty string if the label is too short.
func GetTRNFromLabel(label string) string {
	const start1Based = 43
	const length = 10
	start0Based := start1Based - 1
	if len(label) < start0Based+1 {
		return ""
	}
	end := start0Based + length
	if end > len(label) {
		end = len(label)
	}
	return label[start0Based:end]
}

// ExtractForReceivable returns the uppercased BGI token if present, else
// the uppercased guarantee id token if present, else empty string.
func ExtractForReceivable(label string) string {
	if bgi := ExtractBGIStrict(label); bgi != "" {
		return strings.ToUpper(bgi)
	}
	if gua := ExtractGuaranteeID(label); gua != "" {
		return strings.ToUpper(gua)
	}
	return ""
}

// RemoveZerosFromStart strips leading '0' characters from value.
func RemoveZerosFromStart(value string) string {
	return strings.TrimLeft(value, "0")
}

// ExtractBGPMT extracts a BGPMT payment token (alphanumeric, unique per
// payment) from the given text, case-insensitively, uppercased on return.
func ExtractBGPMT(text string) string {
	return strings.ToUpper(bgpmtPattern.FindString(text))
}

// ExtractBGIStrict extracts a BGI invoice identifier using the strict
// "BGI" + exactly 13 decimal digits form, used everywhere: the loose
// form produces false positives. See the Open Questions in spec.md
// section 9.
func ExtractBGIStrict(text string) string {
	return strings.ToUpper(bgiStrictPattern.FindString(text))
}

// ExtractBGILoose extracts a BGI token with a looser pattern. Kept only
// for the Open Question recorded in spec.md section 9 (a legacy path used
// this form); callers in the core must use ExtractBGIStrict.
func ExtractBGILoose(text string) string {
	return strings.ToUpper(bgiLoosePattern.FindString(text))
}

// ExtractGuaranteeID extracts a guarantee identifier token using the
// configured issuer pattern.
func ExtractGuaranteeID(text string) string {
	return strings.ToUpper(guaranteePattern.FindString(text))
}

// DetectTransactionType implements the label + isPivot + optional
// category-index detection described in spec.md section 4.2. Match order
// is textual order; the first match wins.
func DetectTransactionType(label string, isPivot bool, categoryIndex *model.Category) model.TransactionType {
	upper := strings.ToUpper(label)
	if strings.Contains(upper, "TO CATEGORIZE") || strings.TrimSpace(label) == "" {
		return model.TransactionToCategorize
	}

	if isPivot {
		if categoryIndex != nil {
			return pivotCategoryToType(*categoryIndex)
		}
		switch {
		case strings.Contains(upper, "COLLECTION"):
			return model.TransactionCollection
		case strings.Contains(upper, "AUTOMATIC REFUND"), strings.Contains(upper, "AUTOMATIC PAYMENT"):
			return model.TransactionPayment
		case strings.Contains(upper, "ADJUSTMENT"):
			return model.TransactionAdjustment
		case strings.Contains(upper, "XCL LOADER"):
			return model.TransactionXCLLoader
		case strings.Contains(upper, "TRIGGER"):
			return model.TransactionTrigger
		}
		return model.TransactionToCategorize
	}

	switch {
	case strings.Contains(upper, "INCOMING PAYMENT"):
		return model.TransactionIncomingPayment
	case strings.Contains(upper, "DIRECT DEBIT"):
		return model.TransactionDirectDebit
	case strings.Contains(upper, "MANUAL OUTGOING"):
		return model.TransactionManualOutgoing
	case strings.Contains(upper, "OUTGOING PAYMENT"):
		return model.TransactionOutgoingPayment
	case strings.Contains(upper, "EXTERNAL DEBIT PAYMENT"):
		return model.TransactionExternalDebitPaymt
	}
	return model.TransactionToCategorize
}

// pivotCategoryToType maps a pivot-side category index directly to its
// transaction type, when the caller already carries one (skipping keyword
// matching, per spec.md section 4.2).
func pivotCategoryToType(idx model.Category) model.TransactionType {
	switch idx {
	case 1:
		return model.TransactionCollection
	case 2:
		return model.TransactionPayment
	case 3:
		return model.TransactionAdjustment
	case 4:
		return model.TransactionXCLLoader
	case 5:
		return model.TransactionTrigger
	default:
		return model.TransactionToCategorize
	}
}
