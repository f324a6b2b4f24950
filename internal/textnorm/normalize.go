package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes free text into a comparable form: NFKD decomposition
// with combining marks removed, lowercase, punctuation replaced by spaces, and
// whitespace collapsed to single spaces. Idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	decomposed := norm.NFKD.String(text)

	var builder strings.Builder
	builder.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// drop the combining marks left behind by NFKD
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(unicode.ToLower(r))
		default:
			builder.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(builder.String()), " ")
}

// NormalizeAll normalizes every string and drops the ones that come out empty.
func NormalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if normalized := Normalize(value); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}
