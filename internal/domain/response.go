package domain

// Recommendation is one explained pick in the formatted answer.
type Recommendation struct {
	DishName     string `json:"dish_name"`
	WhyRecommend string `json:"why_recommend"`
}

// Answer is the human-readable explanation of a search.
type Answer struct {
	Summary         string           `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
	TotalFound      int              `json:"total_found"`
	Notes           string           `json:"notes"`
	// Fallback is true when the template path produced the answer.
	Fallback bool `json:"fallback"`
}

// Filters are explicit request constraints layered over the inferred intent.
type Filters struct {
	Category string `json:"category,omitempty"`
	Vegan    *bool  `json:"vegan,omitempty"`
	SpiceMax *int   `json:"spice_max,omitempty"`
}

// RankedItem is a display row of the search response.
type RankedItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Price        float64  `json:"price"`
	SpiceTier    string   `json:"spice_tier"`
	Vegan        bool     `json:"vegan"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Tags         []string `json:"tags"`
	Relevance    float64  `json:"relevance_score"`
	VectorScore  float64  `json:"vector_score"`
	LexicalScore float64  `json:"lexical_score"`
	RerankScore  float64  `json:"rerank_score"`
	Backfilled   bool     `json:"backfilled,omitempty"`
}

// RankedItemFrom flattens a scored item for display.
func RankedItemFrom(s *ScoredItem) RankedItem {
	return RankedItem{
		ID:           s.ID,
		Name:         s.Name,
		Category:     s.Category,
		Price:        s.Price,
		SpiceTier:    SpiceTierOf(s.SpiceLevel).String(),
		Vegan:        IsVeganOf(s.IsVegan),
		Description:  s.Description,
		Ingredients:  s.Ingredients,
		Tags:         s.Tags,
		Relevance:    s.Relevance(),
		VectorScore:  s.VectorScore,
		LexicalScore: s.LexicalScore,
		RerankScore:  s.RerankScore,
		Backfilled:   s.Backfilled,
	}
}
