// Package extraction pulls candidate student names, identifiers and phone
// numbers out of noisy OCR text.
//
// Extraction runs in two tiers. The labeled tier walks the text line by
// line and tries a name rule, then an id rule, then a phone rule; the first
// rule that accepts a line claims it. The fallback tier runs only for a field
// the labeled tier left empty and scans the whole text for unlabeled shapes:
// "First Last" for names and 8-12 digit runs for ids, capped at five each.
// Phones have no fallback.
//
//	rec := extraction.Default().Extract("Student: Jane Doe\nID: 12345678")
//	// rec.Names == ["Jane Doe"], rec.IDs == ["12345678"]
//
// Extraction never returns an error. Absent fields are empty slices.
package extraction
