package normalizer

import "strings"

const fence = "```"

// StripFences removes a leading code fence (with its optional language
// tag) and a trailing fence around a payload. Unfenced input is only
// trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, fence) {
		s = strings.TrimPrefix(s, fence)
		// The language tag runs to the end of the opening line.
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			if tag := strings.TrimSpace(s[:i]); !strings.ContainsAny(tag, "{[") {
				s = s[i+1:]
			}
		} else {
			s = strings.TrimLeftFunc(s, isTagRune)
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

func isTagRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_'
}
