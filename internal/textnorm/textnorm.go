// Package textnorm folds free text into comparable tokens. Queries, item
// documents and keyword lists all go through the same folding.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StemLength is the rune prefix used as a poor man's stem for Russian inflection.
const StemLength = 5

// combiningBreve is kept so that "й" survives folding.
const combiningBreve = '\u0306'

var stopwords = map[string]struct{}{
	"и": {}, "в": {}, "во": {}, "на": {}, "с": {}, "со": {}, "без": {}, "или": {},
	"для": {}, "по": {}, "из": {}, "к": {}, "а": {}, "но": {}, "не": {}, "что": {},
	"как": {}, "мне": {}, "я": {}, "хочу": {}, "хочется": {}, "что-нибудь": {},
	"нибудь": {}, "какой": {}, "какое": {}, "какую": {}, "какие": {}, "есть": {},
	"бы": {}, "the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "with": {},
	"for": {}, "of": {}, "to": {}, "i": {}, "want": {}, "some": {},
}

func newFolder() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.Is(unicode.Mn, r) && r != combiningBreve
		})),
		norm.NFC,
	)
}

// Fold lower-cases s, strips diacritics (ё becomes е), replaces every
// non-alphanumeric rune with a space and collapses whitespace.
func Fold(s string) string {
	folded, _, err := transform.String(newFolder(), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Tokens returns the folded words of s.
func Tokens(s string) []string {
	return strings.Fields(Fold(s))
}

// ContentTokens returns folded words without stopwords and single letters.
func ContentTokens(s string) []string {
	toks := Tokens(s)
	out := toks[:0]
	for _, t := range toks {
		if IsStopword(t) || len([]rune(t)) < 2 {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsStopword reports whether a folded token carries no search meaning.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// Stem truncates a folded token to StemLength runes.
func Stem(tok string) string {
	r := []rune(tok)
	if len(r) <= StemLength {
		return tok
	}
	return string(r[:StemLength])
}

// ContainsAny reports whether folded text contains any of the folded needles as a substring.
func ContainsAny(folded string, needles ...string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(folded, n) {
			return true
		}
	}
	return false
}
