package matching

import (
	"regexp"
	"strings"
)

var postalPattern = regexp.MustCompile(`^[A-Z][0-9][A-Z][0-9][A-Z][0-9]$`)

// NormalizePostal upper-cases a postal code and strips spaces and hyphens.
func NormalizePostal(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		if r == ' ' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidPostal reports whether code is a normalized Canadian postal code.
func ValidPostal(code string) bool {
	return postalPattern.MatchString(code)
}

// MatchPostal reports whether a lead's postal code falls inside a retailer's
// coverage. An empty prefix list accepts every postal code.
func MatchPostal(postal string, prefixes []string) bool {
	postal = NormalizePostal(postal)
	restricted := false
	for _, prefix := range prefixes {
		prefix = NormalizePostal(prefix)
		if prefix == "" {
			continue
		}
		restricted = true
		if strings.HasPrefix(postal, prefix) {
			return true
		}
	}
	return !restricted
}
