package transform

// Func is a named transform function as referenced by the parser mapping
// table's TransformName. All registered functions are pure string ->
// string transforms over the raw cell value; typed conversions (decimal,
// date) happen downstream of the transform step.
type Func func(raw string) string

// Registry builds the table of named transform functions the parser
// resolves mapping entries against. Unknown names are left unresolved by
// the caller and the source value passes through unchanged, per spec.md
// section 4.1.
func Registry(countries CountryTable) map[string]Func {
	return map[string]Func{
		"get_booking_name_from_id": func(raw string) string { return GetBookingNameFromID(raw, countries) },
		"get_mbaw_id_from_label":   GetMbawIDFromLabel,
		"get_codes_from_label":     GetCodesFromLabel,
		"get_trn_from_label":       GetTRNFromLabel,
		"extract_for_receivable":   ExtractForReceivable,
		"remove_zeros_from_start":  RemoveZerosFromStart,
	}
}
