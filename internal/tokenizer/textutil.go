package tokenizer

import (
	"strings"
	"unicode"
)

// AlphanumericRatio returns the fraction of non-space runes that are
// letters or digits. An empty or all-space string scores zero.
func AlphanumericRatio(s string) float64 {
	total := 0
	alnum := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}

// IsPrintable reports whether the string contains only printable runes
func IsPrintable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// IsLowQuality reports whether decoded token text is symbol-only,
// non-printable, or empty. Such tokens are masked from the candidate
// ranking before selection.
func IsLowQuality(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	if !IsPrintable(s) {
		return true
	}
	return AlphanumericRatio(trimmed) == 0
}
