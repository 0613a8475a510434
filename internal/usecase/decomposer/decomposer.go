// Package decomposer turns an intent into retrieval tasks.
package decomposer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/textnorm"
)

// MaxTasks caps the number of component tasks.
const MaxTasks = 5

const (
	genericPhrase = "блюдо"
	starterPhrase = "легкий суп или салат"
	dessertPhrase = "десерт"
)

// courseCues mark a multi-course meal in the mini-context.
var courseCues = []string{"обед", "ланч", "lunch", "комплекс", "сет", "set"}

// Decompose is pure and always returns at least one task.
func Decompose(intent domain.QueryIntent) []domain.SearchTask {
	phrase := strings.TrimSpace(intent.SearchPhrase)
	if phrase == "" {
		phrase = genericPhrase
	}

	if len(intent.Components) > 0 {
		comps := intent.Components[:min(MaxTasks, len(intent.Components))]
		tasks := make([]domain.SearchTask, 0, len(comps))
		for i, c := range comps {
			desc := strings.TrimSpace(c.Name)
			if desc == "" {
				desc = fmt.Sprintf("компонент %d", i+1)
			}
			tasks = append(tasks, domain.SearchTask{
				ID:           fmt.Sprintf("task_%d", i),
				SearchPhrase: firstNonEmpty(c.SearchPhrase, phrase),
				Description:  desc,
				Priority:     i + 1,
			})
		}
		return tasks
	}

	if intent.NeedsDecomposition && hasCourseCue(firstNonEmpty(intent.MiniContext, phrase)) {
		return []domain.SearchTask{
			{ID: "starter", SearchPhrase: starterPhrase, Description: "первое блюдо", Priority: 1},
			{ID: "main", SearchPhrase: phrase, Description: "основное блюдо", Priority: 2},
			{ID: "dessert", SearchPhrase: dessertPhrase, Description: "десерт", Priority: 3},
		}
	}

	return []domain.SearchTask{
		{ID: "main", SearchPhrase: phrase, Description: "основное блюдо", Priority: 1},
	}
}

func hasCourseCue(text string) bool {
	for _, tok := range textnorm.Tokens(text) {
		for _, cue := range courseCues {
			// "сет"/"set" are whole words; the rest match inflected forms.
			if cue == "сет" || cue == "set" {
				if tok == cue {
					return true
				}
				continue
			}
			if strings.HasPrefix(tok, cue) {
				return true
			}
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
