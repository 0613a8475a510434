package analyzer

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/kailas-cloud/dishfinder/internal/domain"
)

// AnchorFloor is the minimum cosine similarity an anchor needs to count.
const AnchorFloor = 0.25

type anchor struct {
	label string
	text  string
}

// componentAnchors describe the dish kinds a short request usually names.
// "блюдо" is the catch-all and never counts as a match.
var componentAnchors = []anchor{
	{"пицца", "итальянская пицца, пицца маргарита, сырная пицца"},
	{"суп", "горячий суп, борщ, том ям, мисо суп"},
	{"салат", "свежий салат, овощной салат, греческий салат, салат цезарь"},
	{"десерт", "сладкий десерт, торт, чизкейк, тирамису, панна котта"},
	{"напиток", "напиток, лимонад, сок, чай, кофе, мохито"},
	{"основное", "основное блюдо, бургер, стейк, буррито, пад тай, фалафель, рататуй"},
	{"закуска", "закуска, сэндвич, кимчи, тапас, анти пасти"},
	{genericPhrase, "какое-нибудь блюдо, еда, что-то поесть"},
}

// categoryAnchors are the coarser second pass, labelled by component.
var categoryAnchors = []anchor{
	{"пицца", "итальянская пицца, сырная корочка, пицца маргарита"},
	{"суп", "горячий суп, тарелка супа, бульон"},
	{"салат", "овощной салат, греческий салат, салат цезарь"},
	{"десерт", "сладкий десерт, торт, чизкейк, тирамису"},
	{"напиток", "напиток, чай, кофе, лимонад, коктейль, сок"},
	{"основное", "горячее основное блюдо, мясо, рыба, паста, бургер, шаверма, буррито, лапша"},
}

// componentCategory maps a component to the category fragment matched
// against item categories. Main courses are spread over too many catalog
// categories to filter on, so "основное" has none.
var componentCategory = map[string]string{
	"пицца":   "пицц",
	"суп":     "суп",
	"салат":   "салат",
	"десерт":  "десерт",
	"напиток": "напит",
	"закуска": "закуск",
}

// AnchorMatch is the dish kind a request is closest to.
type AnchorMatch struct {
	Component string
	Category  string
	Score     float64
}

// AnchorClassifier recognises dish kinds by embedding similarity to fixed
// anchor descriptions, so "борщ" is a soup without a keyword for it.
// Anchor vectors are embedded once and reused; failed embeds are retried
// on the next call.
type AnchorClassifier struct {
	embedder domain.Embedder

	mu   sync.Mutex
	vecs map[string][]float32
}

// NewAnchorClassifier creates a classifier over embedder.
func NewAnchorClassifier(embedder domain.Embedder) *AnchorClassifier {
	return &AnchorClassifier{embedder: embedder, vecs: make(map[string][]float32)}
}

// Classify returns the closest component anchor scoring at least
// AnchorFloor, else the closest category anchor above the floor. The zero
// AnchorMatch means nothing was close enough.
func (c *AnchorClassifier) Classify(ctx context.Context, text string) (AnchorMatch, error) {
	q, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return AnchorMatch{}, fmt.Errorf("embed query: %w", err)
	}

	label, score, err := c.best(ctx, q.Embedding, componentAnchors)
	if err != nil {
		return AnchorMatch{}, err
	}
	if label != genericPhrase && score >= AnchorFloor {
		return AnchorMatch{Component: label, Category: componentCategory[label], Score: score}, nil
	}

	label, score, err = c.best(ctx, q.Embedding, categoryAnchors)
	if err != nil {
		return AnchorMatch{}, err
	}
	if score >= AnchorFloor {
		return AnchorMatch{Component: label, Category: componentCategory[label], Score: score}, nil
	}
	return AnchorMatch{}, nil
}

// best returns the highest scoring anchor; the first one wins ties.
func (c *AnchorClassifier) best(ctx context.Context, q []float32, anchors []anchor) (string, float64, error) {
	var (
		label string
		top   float64
	)
	for _, a := range anchors {
		v, err := c.vector(ctx, a.text)
		if err != nil {
			return "", 0, err
		}
		if s := cosine(q, v); s > top {
			label, top = a.label, s
		}
	}
	return label, top, nil
}

func (c *AnchorClassifier) vector(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	v, ok := c.vecs[text]
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	res, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed anchor: %w", err)
	}
	c.mu.Lock()
	c.vecs[text] = res.Embedding
	c.mu.Unlock()
	return res.Embedding, nil
}

// cosine over the common prefix; zero vectors score 0.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range min(len(a), len(b)) {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
