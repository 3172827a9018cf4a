package parser

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts is tried in this exact order, per spec.md section 4.1: ISO,
// then French, then Italian, then the DWINGS short form.
var dateLayouts = []string{
	"2006-01-02",    // ISO
	"02/01/2006",    // French
	"02-01-2006",    // Italian
	"02-Jan-06",     // DWINGS short form, e.g. 05-MAR-24
}

// ParseDate tries each layout in turn and returns the first successful
// parse, failing with InvalidInput-flavored error text if none match.
func ParseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, trimmed)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q: %w", raw, lastErr)
}

// ParseDecimalSeparator normalizes a decimal string that may use a comma
// or a period as the separator to the canonical period form, so the
// caller can hand it to decimal.NewFromString.
func ParseDecimalSeparator(raw string) string {
	trimmed := strings.TrimSpace(raw)
	// Only treat a comma as the decimal separator when there is exactly
	// one and it is not also accompanied by a period used as the
	// separator (e.g. "1.234,56" thousands-grouped input is out of scope
	// for this core; AMBRE exports are plain "1234,56" or "1234.56").
	if strings.Count(trimmed, ",") == 1 && !strings.Contains(trimmed, ".") {
		return strings.Replace(trimmed, ",", ".", 1)
	}
	return trimmed
}
