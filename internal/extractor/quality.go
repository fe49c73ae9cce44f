package extractor

import (
	"strings"
	"unicode"
)

// Characters expected in Spanish-language statements besides ASCII
// letters and digits.
const statementRunes = ".,-/:;()'\"$€%&@#!?+=*áéíóúüñÁÉÍÓÚÜÑ¿¡°"

// textQuality returns the ratio of characters that plausibly belong to a
// statement (0.0-1.0). unicode.IsLetter is too broad here: glyph garbage
// from identity-encoded fonts decodes to arbitrary letters.
func textQuality(text string) float64 {
	total, readable := 0, 0
	for _, r := range text {
		total++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
			strings.ContainsRune(statementRunes, r) {
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// isReadableText requires more than 60% readable characters.
func isReadableText(text string) bool {
	return textQuality(text) > 0.6
}
