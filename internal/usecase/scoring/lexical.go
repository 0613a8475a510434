package scoring

import (
	"strings"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/textnorm"
)

// Lexical returns the share of the phrase's content words whose stem occurs
// in the item text. A phrase without content words scores 0.
func Lexical(phrase string, it domain.Item) float64 {
	tokens := textnorm.ContentTokens(phrase)
	if len(tokens) == 0 {
		return 0
	}
	doc := textnorm.Fold(it.DocumentText())
	if doc == "" {
		return 0
	}

	var hit int
	for _, t := range tokens {
		if strings.Contains(doc, textnorm.Stem(t)) {
			hit++
		}
	}
	return float64(hit) / float64(len(tokens))
}
