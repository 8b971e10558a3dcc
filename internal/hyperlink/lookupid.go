package hyperlink

import (
	"regexp"
	"strings"
)

// Known identifier shapes embedded in hyperlink targets. Two prefixes are
// recognized, each followed by an alphanumeric segment and six digits.
var (
	lookupIDPattern = regexp.MustCompile(`(?i)(TSRC|CMS)-[A-Za-z0-9]+-[0-9]{6}`)
	docIDPattern    = regexp.MustCompile(`(?i)docid=([^&#]+)`)
)

// ExtractLookupID derives the stable external identifier from a hyperlink's
// address/anchor pair. It tries, in order:
//
//  1. the identifier pattern (first match wins, returned upper-cased)
//  2. a docid= query parameter (raw captured value, case preserved)
//  3. the previously stored content id on the record
//
// Returns "" when nothing matches. Pure and deterministic.
func ExtractLookupID(address, subAddress, storedContentID string) string {
	full := address
	if address != "" && subAddress != "" {
		full = address + "#" + subAddress
	} else if address == "" {
		full = subAddress
	}

	if m := lookupIDPattern.FindString(full); m != "" {
		return strings.ToUpper(m)
	}

	// Permissive fallback: the captured docid value is returned untouched,
	// without validating its shape.
	if m := docIDPattern.FindStringSubmatch(full); m != nil {
		return m[1]
	}

	return storedContentID
}

// LookupIDFor derives and attaches the lookup id for a record.
func LookupIDFor(r *Record) string {
	return ExtractLookupID(r.Address, r.SubAddress, r.ContentID)
}
