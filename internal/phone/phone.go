// Package phone normalizes user-entered phone numbers to E.164.
package phone

import (
	"regexp"
	"strings"
)

const DefaultCountryCode = "+1"

var (
	nonDigit  = regexp.MustCompile(`\D`)
	separator = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	e164      = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// Format converts an arbitrary user-entered phone string into E.164.
// Ten remaining digits get the country code prepended; eleven digits
// starting with 1 get a bare "+". Any other shape is returned unchanged
// on the assumption it is already formatted — a lenient fallback that can
// let malformed numbers through to the provider (kept for compatibility
// with dashboard behavior).
func Format(raw string, countryCode ...string) string {
	cc := DefaultCountryCode
	if len(countryCode) > 0 && countryCode[0] != "" {
		cc = countryCode[0]
	}

	digits := nonDigit.ReplaceAllString(raw, "")

	if len(digits) == 10 {
		return cc + digits
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return "+" + digits
	}
	return raw
}

// Validate reports whether the number matches E.164 syntax after common
// separators are stripped. Purely syntactic; no carrier lookup.
func Validate(formatted string) bool {
	return e164.MatchString(separator.Replace(formatted))
}
