// Package script classifies answer text as romanized or native script.
package script

import "unicode"

// IsRomanized reports whether text consists only of ASCII letters and
// whitespace. The empty string is romanized.
func IsRomanized(text string) bool {
	for _, r := range text {
		if isASCIILetter(r) || unicode.IsSpace(r) {
			continue
		}
		return false
	}
	return true
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
