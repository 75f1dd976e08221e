// internal/match/normalize.go
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes free text for comparison: lowercase, accents stripped,
// everything outside [a-z0-9 ] removed and surrounding spaces trimmed.
// Guesses and catalog titles/artist names all go through this before matching.
func Normalize(s string) string {
	lowered := strings.ToLower(s)

	// NFD splits "é" into "e" + U+0301 so the mark can be dropped.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	decomposed, _, err := transform.String(t, lowered)
	if err != nil {
		decomposed = lowered
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), " ")
}
