package dishfinder

// Filters are explicit constraints on top of what the query text implies.
type Filters struct {
	Category string `json:"category,omitempty"`
	Vegan    *bool  `json:"vegan,omitempty"`
	SpiceMax *int   `json:"spice_max,omitempty"`
}

// SearchRequest is one search call. MaxResults 0 means the server default.
type SearchRequest struct {
	Query      string  `json:"query"`
	MaxResults int     `json:"max_results,omitempty"`
	Filters    Filters `json:"filters"`
}

// RankedItem is one result row.
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
	// Backfilled items only partially match the request.
	Backfilled bool `json:"backfilled,omitempty"`
}

// Component is one part of a decomposed request.
type Component struct {
	Name         string             `json:"name"`
	SearchPhrase string             `json:"search_phrase"`
	Modifiers    map[string]float64 `json:"modifiers,omitempty"`
	Count        int                `json:"count"`
	Priority     int                `json:"priority"`
}

// Intent is how the server understood the query.
type Intent struct {
	Type               string             `json:"type"` // exact, vague, menu, complex
	Category           string             `json:"category,omitempty"`
	Modifiers          map[string]float64 `json:"modifiers,omitempty"`
	SearchPhrase       string             `json:"search_phrase"`
	MiniContext        string             `json:"mini_context"`
	NeedsDecomposition bool               `json:"needs_decomposition"`
	Components         []Component        `json:"components,omitempty"`
}

// Recommendation explains one pick.
type Recommendation struct {
	DishName     string `json:"dish_name"`
	WhyRecommend string `json:"why_recommend"`
}

// Answer is the human-readable explanation.
type Answer struct {
	Summary         string           `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
	TotalFound      int              `json:"total_found"`
	Notes           string           `json:"notes"`
	Fallback        bool             `json:"fallback"`
}

// SearchResponse is the search result. Error is set when the server could
// not process the query; Answer.Summary then carries a message for the user.
type SearchResponse struct {
	RunID       string       `json:"run_id"`
	Query       string       `json:"query"`
	ElapsedMS   int64        `json:"elapsed_ms"`
	RankedItems []RankedItem `json:"ranked_items"`
	Intent      Intent       `json:"intent"`
	Answer      Answer       `json:"answer"`
	TasksCount  int          `json:"tasks_count"`
	Error       string       `json:"error,omitempty"`
}

// Item is a catalog record. SpiceLevel is 0 (mild) to 2+ (hot); IsVegan is 0 or 1.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	SpiceLevel  int      `json:"spice_level"`
	IsVegan     int      `json:"is_vegan"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Tags        []string `json:"tags"`
}

// IndexStats describes the server's vector index.
type IndexStats struct {
	Rows   int    `json:"rows"`
	Dim    int    `json:"dim"`
	Status string `json:"status"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status    string            `json:"status"` // "ok", "degraded", "error"
	Checks    map[string]string `json:"checks"` // component → "ok"/"error"
	IndexRows int               `json:"index_rows"`
}

type itemResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}
