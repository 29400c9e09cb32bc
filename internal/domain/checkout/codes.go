package checkout

import "unicode"

// ParseCodes splits a scan string into item codes, one per rune. Whitespace
// is dropped anywhere in the string.
func ParseCodes(s string) []string {
	codes := make([]string, 0, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		codes = append(codes, string(r))
	}
	return codes
}
