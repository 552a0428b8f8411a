package masterdata

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that do not decompose under NFD.
var foldReplacer = strings.NewReplacer(
	"ø", "o",
	"æ", "ae",
	"ß", "ss",
	"đ", "d",
	"ł", "l",
	"þ", "th",
)

// NormalizeName derives the canonical identifier for a display name:
// lowercase, diacritics folded, every run of other characters collapsed to "_".
func NormalizeName(display string) string {
	lowered := foldReplacer.Replace(strings.ToLower(strings.TrimSpace(display)))
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, lowered)
	if err != nil {
		folded = lowered
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
