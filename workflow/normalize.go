package workflow

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Noise tokens stripped from receipt labels before matching: units and
// packaging words that carry no product identity.
var noiseTokens = map[string]bool{
	"kg": true, "g": true, "gr": true, "l": true, "ml": true, "cl": true,
	"ud": true, "uds": true, "pz": true, "pcs": true, "pc": true, "ea": true,
	"un": true, "pack": true, "pk": true,
}

var (
	multiplierRe = regexp.MustCompile(`^(?:\d+x|x\d+)$`)
	numericRe    = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeLabel canonicalizes a raw receipt label for matching:
// casefold, strip diacritics, drop punctuation, remove quantity
// multipliers (2x, x3), bare numbers and unit tokens, collapse
// whitespace. Idempotent: normalizing twice yields the same string.
func NormalizeLabel(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	tokens := whitespaceRe.Split(strings.TrimSpace(b.String()), -1)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" || noiseTokens[tok] || multiplierRe.MatchString(tok) || numericRe.MatchString(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// sortTokens returns the label's tokens in lexicographic order joined
// by single spaces, so "pollo pechuga" and "pechuga pollo" compare equal.
func sortTokens(s string) string {
	tokens := strings.Fields(s)
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && tokens[j] < tokens[j-1]; j-- {
			tokens[j], tokens[j-1] = tokens[j-1], tokens[j]
		}
	}
	return strings.Join(tokens, " ")
}
