package analyzer

import (
	"slices"
	"strings"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/textnorm"
)

// Keyword sets are matched against folded text (lower case, ё as е).
var (
	notSpicyCues  = []string{"не остр", "неостр", "без остр", "не пикант", "not spicy", "mild"}
	verySpicyCues = []string{"очень остр", "супер остр", "максимально остр", "самое остр", "самый остр", "огненн", "extra spicy"}
	spicyCues     = []string{"остр", "пикант", "чили", "spicy"}

	veganCues = []string{"веган", "вегетариан", "постн", "без мяса", "безмяс", "растительн", "vegan"}

	cheapCues     = []string{"дешев", "подешевл", "недорог", "бюджет", "эконом", "cheap"}
	expensiveCues = []string{"премиум", "люкс", "элитн", "дорогое", "дорогой", "дорогие"}
)

// mealPrefixes mark a meal-time request (Menu).
var mealPrefixes = []string{"обед", "ужин", "завтрак", "ланч", "комбо", "набор", "меню", "lunch", "dinner", "breakfast", "menu"}

// mealExact are short meal words matched as whole tokens only.
var mealExact = []string{"сет", "сета", "сеты", "set"}

// connectives join parts of a composite request.
var connectives = []string{"и", "с", "со", "без", "или", "плюс", "and", "with", "or"}

// splitters separate components; "с" and "без" stay inside a component.
var splitters = []string{"и", "или", "плюс", "and", "or"}

// categoryStems map a token stem to the category fragment matched against item categories.
var categoryStems = []struct {
	stem     string
	category string
}{
	{"суп", "суп"},
	{"салат", "салат"},
	{"десерт", "десерт"},
	{"напит", "напит"},
	{"закуск", "закуск"},
	{"основн", "основн"},
	{"горяч", "горяч"},
	{"пицц", "пицц"},
	{"паст", "паст"},
	{"soup", "суп"},
	{"salad", "салат"},
	{"dessert", "десерт"},
	{"drink", "напит"},
}

// extractModifiers detects spice, dietary and price evidence in folded text.
func extractModifiers(folded string) map[string]float64 {
	mods := make(map[string]float64)

	switch {
	case textnorm.ContainsAny(folded, notSpicyCues...):
		mods[domain.ModSpiciness] = 0
	case textnorm.ContainsAny(folded, verySpicyCues...):
		mods[domain.ModSpiciness] = 1
	case textnorm.ContainsAny(folded, spicyCues...):
		mods[domain.ModSpiciness] = 0.8
	}

	if textnorm.ContainsAny(folded, veganCues...) {
		mods[domain.ModVegan] = 1
	}

	switch {
	case textnorm.ContainsAny(folded, cheapCues...):
		mods[domain.ModCheapness] = 1
	case textnorm.ContainsAny(folded, expensiveCues...):
		mods[domain.ModCheapness] = 0
	}
	return mods
}

func isMealWord(tok string) bool {
	if slices.Contains(mealExact, tok) {
		return true
	}
	for _, p := range mealPrefixes {
		if strings.HasPrefix(tok, p) {
			return true
		}
	}
	return false
}

func categoryOf(tok string) (string, bool) {
	for _, c := range categoryStems {
		if strings.HasPrefix(tok, c.stem) {
			return c.category, true
		}
	}
	return "", false
}

// classify applies Menu > Complex > Exact > Vague.
func classify(tokens []string, raw string) domain.QueryType {
	if slices.ContainsFunc(tokens, isMealWord) {
		return domain.QueryMenu
	}

	hasConnective := strings.Contains(raw, "+") || slices.ContainsFunc(tokens, func(t string) bool {
		return slices.Contains(connectives, t)
	})
	if hasConnective && hasCategoryNoun(tokens) {
		return domain.QueryComplex
	}

	if len(tokens) <= 3 {
		return domain.QueryExact
	}
	return domain.QueryVague
}

// miniContext keeps up to five longest content words in their original order.
// For menu requests the meal word always survives.
func miniContext(tokens []string, qt domain.QueryType) string {
	content := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if textnorm.IsStopword(t) || len([]rune(t)) < 3 {
			continue
		}
		content = append(content, t)
	}
	if len(content) == 0 {
		return ""
	}

	ranked := slices.Clone(content)
	slices.SortStableFunc(ranked, func(a, b string) int {
		return len([]rune(b)) - len([]rune(a))
	})
	keep := make(map[string]bool, 5)
	for _, t := range ranked[:min(5, len(ranked))] {
		keep[t] = true
	}
	if qt == domain.QueryMenu {
		if i := slices.IndexFunc(content, isMealWord); i >= 0 && !keep[content[i]] {
			keep[ranked[min(5, len(ranked))-1]] = false
			keep[content[i]] = true
		}
	}

	out := make([]string, 0, 5)
	for _, t := range content {
		if keep[t] {
			out = append(out, t)
			keep[t] = false
		}
	}
	return strings.Join(out, ", ")
}
