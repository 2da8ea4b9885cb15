package utils

import "strings"

// NormalizePartNumber reduces a part number to uppercase alphanumerics so
// "ab-12 345!" and "AB12345" compare equal.
func NormalizePartNumber(pn string) string {
	var b strings.Builder
	b.Grow(len(pn))
	for _, r := range strings.ToUpper(pn) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidVIN reports whether s looks like a 17-character VIN.
// VINs never contain I, O or Q.
func IsValidVIN(s string) bool {
	if len(s) != 17 {
		return false
	}
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			if r == 'I' || r == 'O' || r == 'Q' {
				return false
			}
		default:
			return false
		}
	}
	return true
}
